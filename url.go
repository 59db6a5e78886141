package erddap

import (
	"fmt"
	"net/url"
	"strings"
)

// bulkItemsPerPage replaces the caller's pagination for machine-read search
// responses. Silent truncation at ERDDAP's default page size surprises users,
// so these formats always request "everything".
const bulkItemsPerPage = 1_000_000

// anyToken is ERDDAP's placeholder for an unconstrained advanced-search
// filter.
const anyToken = "(ANY)"

// nonPaginatedResponses are the machine-read search formats that get the
// forced bulk page size.
var nonPaginatedResponses = []string{
	"csv", "csvp", "csv0",
	"json", "jsonlCSV1", "jsonlCSV", "jsonlKVP",
	"tsv", "tsvp", "tsv0",
}

// DownloadFormats lists every response format ERDDAP can serve from the
// download endpoint.
var DownloadFormats = []string{
	"asc", "csv", "csvp", "csv0", "dataTable", "das", "dds", "dods",
	"esriCsv", "fgdc", "geoJson", "graph", "help", "html", "iso19115",
	"itx", "json", "jsonlCSV1", "jsonlCSV", "jsonlKVP", "mat", "nc",
	"ncHeader", "ncCF", "ncCFHeader", "ncCFMA", "ncCFMAHeader", "nccsv",
	"nccsvMetadata", "ncoJson", "odvTxt", "subset", "tsv", "tsvp", "tsv0",
	"wav", "xhtml", "kml", "smallPdf", "pdf", "largePdf", "smallPng",
	"png", "largePng", "transparentPng",
}

// SearchOptions are the parameters of the advanced-search endpoint. Zero
// values mean "unconstrained": metadata filters fall back to ERDDAP's "(ANY)"
// token and time bounds are omitted from the URL entirely.
type SearchOptions struct {
	Response     string
	SearchFor    string
	Protocol     string
	ItemsPerPage int
	Page         int

	// Metadata filters; lower-cased before insertion.
	CDMDataType  string
	Institution  string
	IOOSCategory string
	Keywords     string
	LongName     string
	StandardName string
	VariableName string

	// Coordinate filters.
	MinLon *float64
	MaxLon *float64
	MinLat *float64
	MaxLat *float64

	// Time bounds: ISO dates (converted to epoch seconds) or relative
	// expressions such as "now-7days" (passed through verbatim).
	MinTime string
	MaxTime string
}

// SearchURL builds the advanced-search URL for server.
func SearchURL(server string, opts SearchOptions) (string, error) {
	server = strings.TrimRight(server, "/")
	if opts.Response == "" {
		opts.Response = "html"
	}
	if opts.Page == 0 {
		opts.Page = 1
	}
	if opts.ItemsPerPage == 0 {
		opts.ItemsPerPage = bulkItemsPerPage
	}
	for _, response := range nonPaginatedResponses {
		if opts.Response == response {
			opts.ItemsPerPage = bulkItemsPerPage
			break
		}
	}

	minTime, err := searchTime(opts.MinTime)
	if err != nil {
		return "", err
	}
	maxTime, err := searchTime(opts.MaxTime)
	if err != nil {
		return "", err
	}

	orAny := func(s string) string {
		if s == "" {
			return anyToken
		}
		return s
	}
	lowerOrAny := func(s string) string {
		if s == "" {
			return anyToken
		}
		return strings.ToLower(s)
	}
	coordOrAny := func(f *float64) string {
		if f == nil {
			return anyToken
		}
		return formatFloat(*f)
	}

	u := fmt.Sprintf("%s/search/advanced.%s"+
		"?page=%d"+
		"&itemsPerPage=%d"+
		"&protocol=%s"+
		"&cdm_data_type=%s"+
		"&institution=%s"+
		"&ioos_category=%s"+
		"&keywords=%s"+
		"&long_name=%s"+
		"&standard_name=%s"+
		"&variableName=%s"+
		"&minLon=%s"+
		"&maxLon=%s"+
		"&minLat=%s"+
		"&maxLat=%s"+
		"&minTime=%s"+
		"&maxTime=%s",
		server, opts.Response,
		opts.Page,
		opts.ItemsPerPage,
		orAny(opts.Protocol),
		lowerOrAny(opts.CDMDataType),
		lowerOrAny(opts.Institution),
		lowerOrAny(opts.IOOSCategory),
		lowerOrAny(opts.Keywords),
		lowerOrAny(opts.LongName),
		lowerOrAny(opts.StandardName),
		lowerOrAny(opts.VariableName),
		coordOrAny(opts.MinLon),
		coordOrAny(opts.MaxLon),
		coordOrAny(opts.MinLat),
		coordOrAny(opts.MaxLat),
		minTime,
		maxTime,
	)

	if opts.SearchFor != "" {
		u += "&searchFor=" + url.QueryEscape(opts.SearchFor)
	}

	// ERDDAP 2.10 and later reject the placeholder token for the time
	// fields; removing the fragments is accepted by older versions too.
	u = strings.ReplaceAll(u, "&minTime="+anyToken, "")
	return strings.ReplaceAll(u, "&maxTime="+anyToken, ""), nil
}

// searchTime renders a time bound: empty stays the "(ANY)" placeholder (to
// be stripped later), relative expressions pass through, and calendar dates
// become epoch seconds.
func searchTime(value string) (string, error) {
	if value == "" {
		return anyToken, nil
	}
	if IsRelativeExpression(value) {
		return value, nil
	}
	seconds, err := ParseDate(value)
	if err != nil {
		return "", err
	}
	return formatFloat(seconds), nil
}

// InfoURL builds the metadata URL for a dataset, or the catalog-wide dataset
// listing when datasetID is empty.
func InfoURL(server, datasetID, response string) (string, error) {
	if response == "" {
		return "", fmt.Errorf("%w: response required for info URL", ErrInvalidArgument)
	}
	server = strings.TrimRight(server, "/")
	if datasetID == "" {
		return fmt.Sprintf("%s/info/index.%s?itemsPerPage=%d", server, response, bulkItemsPerPage), nil
	}
	return fmt.Sprintf("%s/info/%s/index.%s", server, datasetID, response), nil
}

// CategorizeURL builds the categorize URL for an attribute, optionally
// narrowed to a single attribute value.
func CategorizeURL(server, categorizeBy, value, response string) (string, error) {
	if categorizeBy == "" {
		return "", fmt.Errorf("%w: categorizeBy required for categorize URL", ErrInvalidArgument)
	}
	if response == "" {
		return "", fmt.Errorf("%w: response required for categorize URL", ErrInvalidArgument)
	}
	server = strings.TrimRight(server, "/")
	if value != "" {
		return fmt.Sprintf("%s/categorize/%s/%s/index.%s", server, categorizeBy, value, response), nil
	}
	return fmt.Sprintf("%s/categorize/%s/index.%s", server, categorizeBy, response), nil
}

// DownloadOptions are the parameters of the data download endpoint.
type DownloadOptions struct {
	DatasetID   string
	Protocol    string
	Variables   []string
	DimNames    []string
	Response    string
	Constraints *Constraints
	Distinct    bool
}

// timeOperatorPrefixes are the valid comparison-operator spellings of a time
// constraint key. Values under these keys are date-normalized before
// quoting.
var timeOperatorPrefixes = []string{
	"time=", "time!=", "time=~", "time<", "time<=", "time>", "time>=",
}

// DownloadURL builds the data download URL for server.
//
// When protocol is griddap and constraints, variables and dimension names
// are all present, the URL uses griddap's bracket-slice grammar
// "[(min):step:(max)]" per variable and dimension. When response is
// "opendap" the bare dataset handle is returned, since ERDDAP's OPeNDAP
// access point does not take the constrained form. Every other case yields
// the tabledap constrained form with quoted string constraints.
func DownloadURL(server string, opts DownloadOptions) (string, error) {
	server = strings.TrimRight(server, "/")
	if opts.DatasetID == "" {
		return "", fmt.Errorf("%w: please specify a valid dataset id", ErrInvalidArgument)
	}
	if opts.Protocol == "" {
		return "", fmt.Errorf("%w: please specify a valid protocol", ErrInvalidArgument)
	}

	if opts.Protocol == "griddap" && opts.Constraints.Len() > 0 &&
		len(opts.Variables) > 0 && len(opts.DimNames) > 0 {
		return griddapURL(server, opts)
	}

	// An unconstrained OPeNDAP response; the integer-index constrained
	// variant is not supported.
	if opts.Response == "opendap" {
		return fmt.Sprintf("%s/%s/%s", server, opts.Protocol, opts.DatasetID), nil
	}

	u := fmt.Sprintf("%s/%s/%s.%s?", server, opts.Protocol, opts.DatasetID, opts.Response)
	if len(opts.Variables) > 0 {
		u += strings.Join(opts.Variables, ",")
	}

	if opts.Constraints.Len() > 0 {
		constraints := opts.Constraints.Clone()
		for _, k := range constraints.Keys() {
			v, _ := constraints.Get(k)
			if IsRelativeExpression(v) {
				continue
			}
			if !hasTimeOperatorPrefix(k) {
				continue
			}
			s, ok := v.(string)
			if !ok {
				continue
			}
			seconds, err := ParseDate(s)
			if err != nil {
				return "", err
			}
			constraints.Set(k, seconds)
		}
		u += FormatConstraintsURL(QuoteStringConstraints(constraints))
	}

	if opts.Distinct {
		// Server-side sort by the requested variables, then dedupe.
		u += "&distinct()"
	}
	return u, nil
}

func hasTimeOperatorPrefix(key string) bool {
	for _, prefix := range timeOperatorPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// griddapURL serializes the bracket form: every variable, in order, gets one
// "[(min):step:(max)]" group per dimension, in dimension order.
func griddapURL(server string, opts DownloadOptions) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s/%s.%s?", server, opts.Protocol, opts.DatasetID, opts.Response)
	for i, variable := range opts.Variables {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(variable)
		for _, dim := range opts.DimNames {
			low, ok := opts.Constraints.Get(dim + ">=")
			if !ok {
				return "", fmt.Errorf("%w: missing constraint %q", ErrInvalidArgument, dim+">=")
			}
			step, ok := opts.Constraints.Get(dim + "_step")
			if !ok {
				return "", fmt.Errorf("%w: missing constraint %q", ErrInvalidArgument, dim+"_step")
			}
			high, ok := opts.Constraints.Get(dim + "<=")
			if !ok {
				return "", fmt.Errorf("%w: missing constraint %q", ErrInvalidArgument, dim+"<=")
			}
			fmt.Fprintf(&b, "[(%s):%s:(%s)]", formatValue(low), formatValue(step), formatValue(high))
		}
	}
	return b.String(), nil
}
