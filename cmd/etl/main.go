// Command etl backs up, cleans and snapshots the weather app's entries and
// weather observations.
//
// Usage:
//
//	etl serve   # run on start, then every RUN_INTERVAL; serves HTTP on HTTP_ADDR
//	etl run     # execute one pipeline run and exit
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "etl",
		Short:        "Weather backup ETL: back up, clean and snapshot source tables",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newRunCmd())
	return root
}
