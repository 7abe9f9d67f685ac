// Command gotuf is the authoring-side CLI: it builds TUF repositories and
// manages the root-of-trust document.
package main

import (
	"fmt"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/spf13/cobra"
)

func main() {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(logger log.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gotuf",
		Short: "Create and maintain TUF repositories",
	}
	cmd.AddCommand(newCreateCmd(logger))
	cmd.AddCommand(newRootOfTrustCmd(logger))
	return cmd
}
