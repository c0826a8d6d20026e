package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "alertgraph",
		Short: "Graph and anomaly analysis for Suricata fast.log alerts",
		Long: `alertgraph parses Suricata fast.log alert files, builds a host/signature
graph of the most recent 24 hours, scores hosts with unusual alert volume
and groups bursts of identical alerts into a timeline.

Run "alertgraph serve" for the HTTP API or "alertgraph analyze" for a
one-shot JSON report.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newAnalyzeCmd())
	return root
}
