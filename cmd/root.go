// Package cmd wires the docscrawler command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docscrawler",
		Short: "Crawl documentation sites into local markdown files.",
		Long: `docscrawler fetches documentation pages, expands sitemaps, follows
links on scrap roots, and writes extracted content to local files grouped
by domain. YouTube video URLs are stored as transcripts.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	cmd.AddCommand(newRunCmd())
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
