package erddap

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// GriddapMetadata describes a gridded dataset: its dimensions in declaration
// order, its variables, and the full-range default constraints derived from
// the dimension values.
type GriddapMetadata struct {
	Constraints *Constraints
	DimNames    []string
	Variables   []string
	// DimLengths records the number of values per dimension, for
	// diagnostics.
	DimLengths map[string]int
}

// FetchGriddapConstraints fetches a gridded dataset's DDS descriptor and the
// value range of every dimension, and derives default min/max/step
// constraints. datasetURL is the protocol-level dataset handle, e.g.
// "{server}/griddap/{datasetID}". The step is applied uniformly to every
// dimension.
func FetchGriddapConstraints(ctx context.Context, fetcher Fetcher, datasetURL string, step int) (*GriddapMetadata, error) {
	ddsURL := datasetURL + ".dds"
	payload, err := fetcher.Fetch(ctx, ddsURL)
	if err != nil {
		return nil, fmt.Errorf("griddap descriptor: %w", err)
	}

	dimNames, variables, err := parseDDS(string(payload))
	if err != nil {
		return nil, err
	}

	meta := &GriddapMetadata{
		Constraints: NewConstraints(),
		DimNames:    dimNames,
		Variables:   variables,
		DimLengths:  make(map[string]int, len(dimNames)),
	}
	for _, dim := range dimNames {
		rangeURL := fmt.Sprintf("%s.csvp?%s", datasetURL, dim)
		payload, err := fetcher.Fetch(ctx, rangeURL)
		if err != nil {
			return nil, fmt.Errorf("griddap dimension %q: %w", dim, err)
		}
		low, high, length, err := dimensionRange(dim, payload)
		if err != nil {
			return nil, fmt.Errorf("griddap dimension %q: %w", dim, err)
		}
		meta.Constraints.Set(dim+">=", low)
		meta.Constraints.Set(dim+"<=", high)
		meta.Constraints.Set(dim+"_step", step)
		meta.DimLengths[dim] = length
	}
	return meta, nil
}

// parseDDS extracts the ordered dimension and variable names from a DDS
// descriptor. Dimension declarations precede the first GRID block; each GRID
// block declares one variable. A name is the last whitespace-separated token
// before its first bracket.
func parseDDS(data string) (dimNames, variables []string, err error) {
	parts := strings.Split(data, "GRID")
	if len(parts) < 2 {
		return nil, nil, fmt.Errorf("%w: no GRID blocks in dataset descriptor", ErrParse)
	}

	segments := strings.Split(parts[0], "[")
	for _, segment := range segments[:len(segments)-1] {
		fields := strings.Fields(segment)
		if len(fields) == 0 {
			return nil, nil, fmt.Errorf("%w: malformed dimension declaration in descriptor", ErrParse)
		}
		dimNames = append(dimNames, fields[len(fields)-1])
	}

	for _, block := range parts[1:] {
		phrase, _, _ := strings.Cut(block, "[")
		fields := strings.Fields(phrase)
		if len(fields) == 0 {
			return nil, nil, fmt.Errorf("%w: malformed GRID block in descriptor", ErrParse)
		}
		variables = append(variables, fields[len(fields)-1])
	}
	return dimNames, variables, nil
}

// dimensionRange reads a single-column ".csvp" extract of one dimension and
// returns its boundary values and row count. The first row is the minimum
// and the last the maximum, except for the time dimension: the server this
// behavior was observed against returns time descending, so there the roles
// are reversed.
func dimensionRange(dim string, payload []byte) (low, high any, length int, err error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: cannot read csvp header: %v", ErrParse, err)
	}
	if len(header) == 0 || strings.TrimSpace(header[0]) == "" {
		return nil, nil, 0, fmt.Errorf("%w: empty csvp header", ErrParse)
	}

	var values []any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, 0, fmt.Errorf("%w: cannot read csvp record: %v", ErrParse, err)
		}
		if len(record) == 0 {
			continue
		}
		values = append(values, dimensionValue(record[0]))
	}
	if len(values) == 0 {
		return nil, nil, 0, fmt.Errorf("%w: no values returned for dimension", ErrParse)
	}

	first, last := values[0], values[len(values)-1]
	if dim == "time" {
		return last, first, len(values), nil
	}
	return first, last, len(values), nil
}

// dimensionValue keeps numeric dimension values numeric; anything else (the
// time axis returns ISO-8601 strings) is passed through verbatim.
func dimensionValue(raw string) any {
	raw = strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// CheckGriddapConstraints validates user-edited constraints against the
// snapshot taken at initialization. Values may change (narrowing a range is
// expected); the key set may not. Every offending key is reported.
func CheckGriddapConstraints(user, original *Constraints) error {
	missing := diffKeys(original, user)
	added := diffKeys(user, original)
	if len(missing) == 0 && len(added) == 0 {
		return nil
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing keys %v", missing))
	}
	if len(added) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected keys %v", added))
	}
	return fmt.Errorf("%w: constraint keys have changed (%s); re-run GriddapInitialize",
		ErrValidation, strings.Join(parts, ", "))
}

// diffKeys returns the keys of a that are absent from b.
func diffKeys(a, b *Constraints) []string {
	var out []string
	for _, k := range a.Keys() {
		if _, ok := b.Get(k); !ok {
			out = append(out, k)
		}
	}
	return out
}

// CheckGriddapVariables validates that every requested variable exists in
// the dataset. Every unknown variable is reported.
func CheckGriddapVariables(user, original []string) error {
	known := make(map[string]bool, len(original))
	for _, v := range original {
		known[v] = true
	}
	var invalid []string
	for _, v := range user {
		if !known[v] {
			invalid = append(invalid, v)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%w: variables %v are not present in dataset; re-run GriddapInitialize",
			ErrValidation, invalid)
	}
	return nil
}
