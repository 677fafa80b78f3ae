// Package main provides the sparqlpad binary entry point.
// Sparqlpad serves a local SPARQL endpoint with a browser query editor and
// an optional conversational query assistant over one or more RDF files.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sparqlpad"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "sparqlpad [files or globs...]",
		Short: "Local SPARQL endpoint with a query editor and AI assistant",
		Long: `Sparqlpad loads RDF files into an in-memory graph and serves:

- a SPARQL query endpoint (GET/POST /sparql, SPARQL JSON results)
- a browser query editor at /
- a conversational query assistant (when an API key is configured)

File formats are detected from extensions (.ttl, .nt, .nq, .rdf/.xml/.owl);
use --format to override. Arguments may be glob patterns like 'data/**/*.ttl'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "Interface to bind (overrides config)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Listen port (overrides config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Force RDF format for all files (turtle, ntriples, nquads, xml)")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Reload the graph when source files change")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(configCmd())

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}
