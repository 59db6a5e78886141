package erddap

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// DatasetResult is one matching dataset from a multi-server search.
type DatasetResult struct {
	Title       string `json:"title"`
	Institution string `json:"institution"`
	DatasetID   string `json:"dataset_id"`
	ServerURL   string `json:"server_url"`
}

// MultiSearchOptions configure a search across many ERDDAP servers.
type MultiSearchOptions struct {
	// Servers are base URLs to search. Empty means every server in the
	// registry.
	Servers []string
	// Protocol filters results to tabledap or griddap datasets. Defaults
	// to tabledap.
	Protocol string
	// Fetcher defaults to an HTTPFetcher.
	Fetcher Fetcher
	// Logger receives one warning per failed server. Defaults to the
	// logrus standard logger.
	Logger logrus.FieldLogger
}

func (o *MultiSearchOptions) defaults() error {
	if o.Protocol == "" {
		o.Protocol = "tabledap"
	}
	if o.Protocol != "tabledap" && o.Protocol != "griddap" {
		return fmt.Errorf("%w: protocol must be tabledap or griddap, got %q", ErrInvalidArgument, o.Protocol)
	}
	if o.Fetcher == nil {
		o.Fetcher = &HTTPFetcher{}
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if len(o.Servers) == 0 {
		registry := Servers()
		for _, entry := range registry {
			o.Servers = append(o.Servers, entry.URL)
		}
		sort.Strings(o.Servers)
	}
	return nil
}

// SearchServers runs a full-text search against every server and merges the
// matches. Servers are queried concurrently and independently: a server that
// fails, times out, or returns an unparseable response contributes no
// results instead of failing the whole search.
func SearchServers(ctx context.Context, query string, opts MultiSearchOptions) ([]DatasetResult, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	urls := make(map[string]string, len(opts.Servers))
	for _, server := range opts.Servers {
		urls[server] = searchIndexURL(server, query)
	}
	return fanOutSearches(ctx, urls, opts), nil
}

// AdvancedSearchServers runs an advanced search (metadata and coordinate
// filters) against every server and merges the matches. The search response
// format is forced to CSV.
func AdvancedSearchServers(ctx context.Context, search SearchOptions, opts MultiSearchOptions) ([]DatasetResult, error) {
	if err := opts.defaults(); err != nil {
		return nil, err
	}
	search.Response = "csv"
	urls := make(map[string]string, len(opts.Servers))
	for _, server := range opts.Servers {
		u, err := SearchURL(server, search)
		if err != nil {
			return nil, err
		}
		urls[server] = u
	}
	return fanOutSearches(ctx, urls, opts), nil
}

// searchIndexURL is the unpaginated full-text search form of a server.
func searchIndexURL(server, query string) string {
	return fmt.Sprintf("%s/search/index.csv?page=1&itemsPerPage=%d&searchFor=%s",
		strings.TrimRight(server, "/"), bulkItemsPerPage, url.QueryEscape(`"`+query+`"`))
}

// fanOutSearches issues one fetch per server and collects whatever parses.
// One goroutine per server; results are merged over a channel and siblings
// are never cancelled by a failing server.
func fanOutSearches(ctx context.Context, urls map[string]string, opts MultiSearchOptions) []DatasetResult {
	results := make(chan []DatasetResult)
	var wg sync.WaitGroup
	for server, u := range urls {
		wg.Add(1)
		go func(server, u string) {
			defer wg.Done()
			rows, err := fetchSearchResults(ctx, opts.Fetcher, server, u, opts.Protocol)
			if err != nil {
				opts.Logger.WithField("server", server).Warnf("search failed: %v", err)
				return
			}
			results <- rows
		}(server, u)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var merged []DatasetResult
	for rows := range results {
		merged = append(merged, rows...)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].ServerURL != merged[j].ServerURL {
			return merged[i].ServerURL < merged[j].ServerURL
		}
		return merged[i].DatasetID < merged[j].DatasetID
	})
	return merged
}

// fetchSearchResults fetches one server's CSV search response and keeps the
// rows that carry an access URL for the requested protocol.
func fetchSearchResults(ctx context.Context, fetcher Fetcher, server, u, protocol string) ([]DatasetResult, error) {
	payload, err := fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read search header: %v", ErrParse, err)
	}
	column := make(map[string]int, len(header))
	for i, name := range header {
		column[name] = i
	}
	protocolCol, ok := column[protocol]
	if !ok {
		// Bad servers answer searches with HTML error pages.
		return nil, fmt.Errorf("%w: search response has no %q column", ErrParse, protocol)
	}
	titleCol, hasTitle := column["Title"]
	institutionCol, hasInstitution := column["Institution"]
	idCol, ok := column["Dataset ID"]
	if !ok {
		return nil, fmt.Errorf("%w: search response has no %q column", ErrParse, "Dataset ID")
	}

	serverURL := strings.TrimRight(server, "/") + "/"
	var rows []DatasetResult
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: cannot read search record: %v", ErrParse, err)
		}
		if len(record) <= protocolCol || len(record) <= idCol {
			continue
		}
		if record[protocolCol] == "" {
			continue
		}
		row := DatasetResult{DatasetID: record[idCol], ServerURL: serverURL}
		if hasTitle && titleCol < len(record) {
			row.Title = record[titleCol]
		}
		if hasInstitution && institutionCol < len(record) {
			row.Institution = record[institutionCol]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
