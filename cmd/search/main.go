// Package main provides a command-line dataset search across ERDDAP servers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.ngs.io/erddap"
)

func main() {
	query := flag.String("query", "", "Search terms (required)")
	server := flag.String("server", "", "Search a single server URL or registry short name (default: all registry servers)")
	protocol := flag.String("protocol", "tabledap", "Filter results to tabledap or griddap datasets")
	timeout := flag.Duration("timeout", 60*time.Second, "Per-server fetch timeout")
	flag.Parse()

	if *query == "" {
		fmt.Fprintln(os.Stderr, "usage: search -query <terms> [-server URL] [-protocol tabledap|griddap]")
		os.Exit(2)
	}

	opts := erddap.MultiSearchOptions{
		Protocol: *protocol,
		Fetcher:  &erddap.HTTPFetcher{Timeout: *timeout},
	}
	if *server != "" {
		client := erddap.New(*server)
		opts.Servers = []string{client.Server}
	}

	results, err := erddap.SearchServers(context.Background(), *query, opts)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	for _, result := range results {
		fmt.Printf("%s\t%s\t%s\t%s\n", result.DatasetID, result.Title, result.Institution, result.ServerURL)
	}
	fmt.Fprintf(os.Stderr, "%d matching datasets\n", len(results))
}
