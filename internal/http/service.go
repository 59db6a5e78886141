package http

import (
	"context"

	"github.com/sirupsen/logrus"

	"go.ngs.io/erddap"
)

// SearchService sits between the HTTP handlers and the ERDDAP client. It
// binds a default server endpoint and the shared fetcher so handlers stay
// free of client wiring.
type SearchService struct {
	server  string
	fetcher erddap.Fetcher
	logger  logrus.FieldLogger
}

// NewSearchService creates a service using server as the default endpoint
// for per-dataset requests.
func NewSearchService(server string, fetcher erddap.Fetcher, logger logrus.FieldLogger) *SearchService {
	if fetcher == nil {
		fetcher = &erddap.HTTPFetcher{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SearchService{server: server, fetcher: fetcher, logger: logger}
}

func (s *SearchService) client() *erddap.Client {
	return erddap.New(s.server, erddap.WithFetcher(s.fetcher))
}

// Search runs a full-text dataset search. An empty server searches every
// registry server; otherwise only the given endpoint is queried.
func (s *SearchService) Search(ctx context.Context, query, protocol, server string) ([]erddap.DatasetResult, error) {
	opts := erddap.MultiSearchOptions{
		Protocol: protocol,
		Fetcher:  s.fetcher,
		Logger:   s.logger,
	}
	if server != "" {
		opts.Servers = []string{server}
	}
	return erddap.SearchServers(ctx, query, opts)
}

// DatasetInfo returns the attribute table of every variable in a dataset.
func (s *SearchService) DatasetInfo(ctx context.Context, datasetID string) (map[string]map[string]string, error) {
	return s.client().DatasetVariables(ctx, datasetID)
}

// CategorizeURL builds the categorize URL for an attribute on the default
// server.
func (s *SearchService) CategorizeURL(categorizeBy, value, response string) (string, error) {
	return s.client().CategorizeURL(categorizeBy, value, response)
}

// DownloadURL builds a download URL for a dataset on the default server.
func (s *SearchService) DownloadURL(datasetID, protocol, response string, variables []string) (string, error) {
	client := s.client()
	client.Protocol = protocol
	return client.DownloadURL(erddap.DownloadOptions{
		DatasetID: datasetID,
		Response:  response,
		Variables: variables,
	})
}

// Servers returns the known-server registry.
func (s *SearchService) Servers() map[string]erddap.Server {
	return erddap.Servers()
}
