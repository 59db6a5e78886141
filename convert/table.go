// Package convert materializes ERDDAP response payloads into in-memory data
// structures: CSV responses become Arrow record batches and NetCDF responses
// become gridded arrays.
package convert

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
)

// Table parses a CSV or CSVP payload into a single Arrow record batch with
// inferred column types. The caller owns the returned record and must
// Release it.
func Table(payload []byte) (arrow.Record, error) {
	reader := csv.NewInferringReader(
		bytes.NewReader(payload),
		csv.WithHeader(true),
		csv.WithChunk(-1),
		csv.WithNullReader(true, "", "NaN"),
	)
	defer reader.Release()

	if !reader.Next() {
		if err := reader.Err(); err != nil {
			return nil, fmt.Errorf("parse csv payload: %w", err)
		}
		return nil, fmt.Errorf("empty csv payload")
	}
	record := reader.Record()
	record.Retain()
	if err := reader.Err(); err != nil {
		record.Release()
		return nil, fmt.Errorf("parse csv payload: %w", err)
	}
	return record, nil
}

// Column returns the array for a named column of a record.
func Column(record arrow.Record, name string) (arrow.Array, error) {
	for i, field := range record.Schema().Fields() {
		if field.Name == name {
			return record.Column(i), nil
		}
	}
	return nil, fmt.Errorf("no column %q in table", name)
}
