package tuf

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcherFetchesBody(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2.root.json", r.URL.Path)
		w.Write([]byte(`{"hello":"world"}`))
	}))
	defer svr.Close()

	f := NewHTTPFetcher(svr.URL)
	f.Client = svr.Client()

	rc, err := f.Fetch(context.Background(), "2.root.json")
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(body))
}

func TestHTTPFetcherMapsNotFoundStatus(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer svr.Close()

	f := NewHTTPFetcher(svr.URL)
	f.Client = svr.Client()

	_, err := f.Fetch(context.Background(), "99.root.json")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestHTTPFetcherReturnsErrorOnServerFailure(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer svr.Close()

	f := NewHTTPFetcher(svr.URL)
	f.Client = svr.Client()

	_, err := f.Fetch(context.Background(), "timestamp.json")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestHTTPFetcherJoinsBaseURLAndName(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repo/targets/abc123.foo.txt", r.URL.Path)
		w.Write([]byte("ok"))
	}))
	defer svr.Close()

	f := NewHTTPFetcher(svr.URL + "/repo")
	f.Client = svr.Client()

	rc, err := f.Fetch(context.Background(), "targets/abc123.foo.txt")
	require.NoError(t, err)
	rc.Close()
}
