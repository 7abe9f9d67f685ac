package tuf

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/pkg/errors"
)

// Fetcher retrieves a named file from the repository's mirror. Callers pass
// a repository-relative name such as "2.root.json" or "targets/<hex>.foo";
// Fetcher is responsible for turning that into a request against the
// configured base URL.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)
}

// HTTPFetcher is the default Fetcher, issuing a plain GET against baseURL
// joined with name. A 404 response is reported as *NotFoundError so root
// rotation can recognize "no more root versions" without special-casing
// HTTP status codes outside this package.
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPFetcher builds an HTTPFetcher with dial and TLS-handshake timeouts,
// matching the conservative defaults a client fetching untrusted-until-
// verified metadata over the network should use.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &HTTPFetcher{
		BaseURL: baseURL,
		Client:  &http.Client{Transport: transport, Timeout: 60 * time.Second},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	base, err := url.Parse(f.BaseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid mirror url %q", f.BaseURL)
	}
	base.Path = path.Join(base.Path, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %q", name)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %q", name)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, &NotFoundError{Name: name}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errors.Errorf("fetching %q: unexpected status %s", name, resp.Status)
	}
	return resp.Body, nil
}
