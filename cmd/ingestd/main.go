// Command ingestd serves the operator API of the ingestion job queue
// and provides maintenance subcommands (migrate, stats, retry) against
// the configured store. All configuration comes from INGESTD_*
// environment variables; see ingest.LoadConfig.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
