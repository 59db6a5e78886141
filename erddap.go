// Package erddap is a client for the ERDDAP scientific-data-server REST API.
//
// A Client binds a server endpoint, a protocol (tabledap or griddap) and a
// response format, and builds protocol-compliant request URLs for the
// search, info, categorize and download endpoints. Gridded datasets are
// initialized from their dimension metadata before download URLs can be
// subset with griddap's bracket-slice grammar.
package erddap

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"
)

// Client is a stateful facade over one ERDDAP server endpoint. DatasetID,
// Variables, DimNames and Constraints act as defaults for every URL-building
// call and may be set directly or via GriddapInitialize. A Client is not
// safe for concurrent mutation; independent Clients share no state.
type Client struct {
	Server   string
	Protocol string
	Response string

	DatasetID   string
	Variables   []string
	DimNames    []string
	Constraints *Constraints

	// Fetcher performs all network access. Defaults to an HTTPFetcher.
	Fetcher Fetcher

	// Snapshots taken by GriddapInitialize; used only for validation.
	originalConstraints *Constraints
	originalVariables   []string

	// Info responses memoized per dataset id.
	variableCache map[string]map[string]map[string]string
}

// Option configures a Client at construction.
type Option func(*Client)

// WithProtocol sets the ERDDAP protocol, "tabledap" or "griddap".
func WithProtocol(protocol string) Option {
	return func(c *Client) { c.Protocol = protocol }
}

// WithResponse sets the default response format.
func WithResponse(response string) Option {
	return func(c *Client) { c.Response = response }
}

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(fetcher Fetcher) Option {
	return func(c *Client) { c.Fetcher = fetcher }
}

// WithAuth sets basic-auth credentials on the default fetcher. It has no
// effect when combined with WithFetcher.
func WithAuth(user, password string) Option {
	return func(c *Client) {
		if f, ok := c.Fetcher.(*HTTPFetcher); ok {
			f.Auth = &Credentials{User: user, Password: password}
		}
	}
}

// WithTimeout sets the per-request timeout on the default fetcher. It has no
// effect when combined with WithFetcher.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if f, ok := c.Fetcher.(*HTTPFetcher); ok {
			f.Timeout = timeout
		}
	}
}

// New creates a Client for a server endpoint. The server may be a full URL
// or a registry short name such as "NGDAC"; trailing slashes are stripped.
// The default response format is "html".
func New(server string, opts ...Option) *Client {
	c := &Client{
		Server:   strings.TrimRight(resolveServer(server), "/"),
		Response: "html",
		Fetcher:  &HTTPFetcher{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchURL builds an advanced-search URL, defaulting the response format
// and protocol from the client.
func (c *Client) SearchURL(opts SearchOptions) (string, error) {
	if opts.Response == "" {
		opts.Response = c.Response
	}
	if opts.Protocol == "" {
		opts.Protocol = c.Protocol
	}
	return SearchURL(c.Server, opts)
}

// InfoURL builds a dataset metadata URL, defaulting the dataset id and
// response format from the client.
func (c *Client) InfoURL(datasetID, response string) (string, error) {
	if datasetID == "" {
		datasetID = c.DatasetID
	}
	if response == "" {
		response = c.Response
	}
	return InfoURL(c.Server, datasetID, response)
}

// CategorizeURL builds a categorize URL, defaulting the response format from
// the client.
func (c *Client) CategorizeURL(categorizeBy, value, response string) (string, error) {
	if response == "" {
		response = c.Response
	}
	return CategorizeURL(c.Server, categorizeBy, value, response)
}

// DownloadURL builds a download URL, defaulting every unset option from
// client state. After GriddapInitialize has run, griddap downloads are
// validated against the initialization snapshot: the constraint key set must
// be unchanged and every requested variable must exist in the dataset.
func (c *Client) DownloadURL(opts DownloadOptions) (string, error) {
	if opts.DatasetID == "" {
		opts.DatasetID = c.DatasetID
	}
	if opts.Protocol == "" {
		opts.Protocol = c.Protocol
	}
	if opts.Variables == nil {
		opts.Variables = c.Variables
	}
	if opts.DimNames == nil {
		opts.DimNames = c.DimNames
	}
	if opts.Response == "" {
		opts.Response = c.Response
	}
	if opts.Constraints == nil {
		opts.Constraints = c.Constraints
	}

	if opts.Protocol == "griddap" && opts.Constraints.Len() > 0 &&
		len(opts.Variables) > 0 && len(opts.DimNames) > 0 &&
		c.originalConstraints != nil {
		if err := CheckGriddapConstraints(opts.Constraints, c.originalConstraints); err != nil {
			return "", err
		}
		if err := CheckGriddapVariables(opts.Variables, c.originalVariables); err != nil {
			return "", err
		}
	}
	return DownloadURL(c.Server, opts)
}

// GriddapInitialize fetches a gridded dataset's dimension metadata and
// resets the client's constraints, dimension names and variables to the
// dataset's full extent. The step applies uniformly to every dimension. A
// snapshot of the fetched constraints and variables is kept for validating
// later edits; callers are expected to mutate Constraints afterwards, e.g.
// to narrow a time range.
//
// Calling this on a non-griddap client is an error rather than a no-op, so
// a misconfigured protocol fails loudly. When the response format is
// "opendap" there is nothing to slice and the call returns without fetching.
func (c *Client) GriddapInitialize(ctx context.Context, datasetID string, step int) error {
	if c.Protocol != "griddap" {
		return fmt.Errorf("%w: only valid for the griddap protocol, got %q", ErrInvalidArgument, c.Protocol)
	}
	if datasetID == "" {
		datasetID = c.DatasetID
	}
	if datasetID == "" {
		return fmt.Errorf("%w: must set a valid dataset id", ErrInvalidArgument)
	}
	if c.Response == "opendap" {
		return nil
	}
	if step == 0 {
		step = 1
	}

	metadataURL := fmt.Sprintf("%s/griddap/%s", c.Server, datasetID)
	meta, err := FetchGriddapConstraints(ctx, c.Fetcher, metadataURL, step)
	if err != nil {
		return err
	}

	c.DatasetID = datasetID
	c.Constraints = meta.Constraints
	c.DimNames = meta.DimNames
	c.Variables = meta.Variables

	// Snapshots must not alias the live fields.
	c.originalConstraints = meta.Constraints.Clone()
	c.originalVariables = append([]string(nil), meta.Variables...)
	return nil
}

// Fetch builds a download URL for the given response format and returns the
// raw payload.
func (c *Client) Fetch(ctx context.Context, response string, distinct bool) ([]byte, error) {
	u, err := c.DownloadURL(DownloadOptions{Response: response, Distinct: distinct})
	if err != nil {
		return nil, err
	}
	return c.Fetcher.Fetch(ctx, u)
}

// DownloadFile downloads the dataset in the requested format to a file in
// the working directory, named after the dataset id and a short hash of the
// canonical download URL. Existing files are reused.
func (c *Client) DownloadFile(ctx context.Context, fileType string) (string, error) {
	fileType = strings.TrimPrefix(fileType, ".")
	supported := false
	for _, format := range DownloadFormats {
		if fileType == format {
			supported = true
			break
		}
	}
	if !supported {
		return "", fmt.Errorf("%w: filetype %q not available on ERDDAP", ErrInvalidArgument, fileType)
	}

	u, err := c.DownloadURL(DownloadOptions{Response: fileType})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(sortURL(u)))
	name := fmt.Sprintf("%s_%s.%s", c.DatasetID, hex.EncodeToString(sum[:5]), fileType)
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	payload, err := c.Fetcher.Fetch(ctx, u)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(name, payload, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return name, nil
}

// sortURL canonicalizes a download URL for hashing by sorting the requested
// variables and the constraint fragments, so equivalent requests share a
// cache file name.
func sortURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.RawQuery == "" {
		return raw
	}
	variables, constraints, found := strings.Cut(parsed.RawQuery, "&")
	vars := strings.Split(variables, ",")
	sort.Strings(vars)
	sorted := strings.Join(vars, ",")
	if found {
		fragments := strings.Split(constraints, "&")
		sort.Strings(fragments)
		sorted += "&" + strings.Join(fragments, "&")
	}
	return fmt.Sprintf("%s://%s%s?%s", parsed.Scheme, parsed.Host, parsed.Path, sorted)
}

// DatasetVariables fetches the dataset's info CSV and returns every
// variable's attributes, keyed variable → attribute → value. Results are
// memoized per dataset id for the client's lifetime.
func (c *Client) DatasetVariables(ctx context.Context, datasetID string) (map[string]map[string]string, error) {
	if datasetID == "" {
		datasetID = c.DatasetID
	}
	if datasetID == "" {
		return nil, fmt.Errorf("%w: must set a valid dataset id", ErrInvalidArgument)
	}
	if cached, ok := c.variableCache[datasetID]; ok {
		return cached, nil
	}

	u, err := c.InfoURL(datasetID, "csv")
	if err != nil {
		return nil, err
	}
	payload, err := c.Fetcher.Fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	variables, err := parseInfoCSV(payload)
	if err != nil {
		return nil, err
	}
	if c.variableCache == nil {
		c.variableCache = make(map[string]map[string]map[string]string)
	}
	c.variableCache[datasetID] = variables
	return variables, nil
}

// VarByAttr returns the names of variables whose attribute satisfies match,
// e.g. variables with standard_name "sea_water_temperature" or axis "T".
// Variables lacking the attribute are passed to match with an empty value.
func (c *Client) VarByAttr(ctx context.Context, datasetID, attribute string, match func(value string) bool) ([]string, error) {
	variables, err := c.DatasetVariables(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		if match(variables[name][attribute]) {
			out = append(out, name)
		}
	}
	return out, nil
}

// parseInfoCSV decodes ERDDAP's info response, which carries columns
// "Row Type", "Variable Name", "Attribute Name", "Data Type" and "Value".
func parseInfoCSV(payload []byte) (map[string]map[string]string, error) {
	reader := csv.NewReader(strings.NewReader(string(payload)))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read info header: %v", ErrParse, err)
	}
	column := make(map[string]int, len(header))
	for i, name := range header {
		column[name] = i
	}
	varCol, ok := column["Variable Name"]
	if !ok {
		return nil, fmt.Errorf("%w: info response has no %q column", ErrParse, "Variable Name")
	}
	attrCol, ok := column["Attribute Name"]
	if !ok {
		return nil, fmt.Errorf("%w: info response has no %q column", ErrParse, "Attribute Name")
	}
	valueCol, ok := column["Value"]
	if !ok {
		return nil, fmt.Errorf("%w: info response has no %q column", ErrParse, "Value")
	}

	variables := make(map[string]map[string]string)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: cannot read info record: %v", ErrParse, err)
		}
		if len(record) <= varCol || len(record) <= attrCol || len(record) <= valueCol {
			continue
		}
		name := record[varCol]
		if name == "" {
			continue
		}
		if variables[name] == nil {
			variables[name] = make(map[string]string)
		}
		if attr := record[attrCol]; attr != "" {
			variables[name][attr] = record[valueCol]
		}
	}
	return variables, nil
}
