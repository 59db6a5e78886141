package convert

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

const testTableCSV = "time (UTC),station,salinity (PSU)\n" +
	"2021-01-01T00:00:00Z,ru29,35.1\n" +
	"2021-01-01T01:00:00Z,ru29,NaN\n" +
	"2021-01-01T02:00:00Z,ru30,34.9\n"

func TestTable(t *testing.T) {
	record, err := Table([]byte(testTableCSV))
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	defer record.Release()

	if record.NumRows() != 3 || record.NumCols() != 3 {
		t.Fatalf("shape = %dx%d, want 3x3", record.NumRows(), record.NumCols())
	}

	stations, err := Column(record, "station")
	if err != nil {
		t.Fatalf("Column: %v", err)
	}
	str, ok := stations.(*array.String)
	if !ok {
		t.Fatalf("station column inferred as %T, want string", stations)
	}
	if str.Value(2) != "ru30" {
		t.Errorf("station[2] = %q, want ru30", str.Value(2))
	}

	salinity, err := Column(record, "salinity (PSU)")
	if err != nil {
		t.Fatalf("Column: %v", err)
	}
	if salinity.DataType().ID() != arrow.FLOAT64 {
		t.Fatalf("salinity column inferred as %v, want float64", salinity.DataType())
	}
	if !salinity.IsNull(1) {
		t.Error("NaN cell not read as null")
	}
}

func TestTable_Errors(t *testing.T) {
	if _, err := Table(nil); err == nil {
		t.Error("expected an error for an empty payload")
	}
	if _, err := Table([]byte("a,b\n1\n2,3,4\n")); err == nil {
		t.Error("expected an error for ragged rows")
	}
}

func TestColumn_Missing(t *testing.T) {
	record, err := Table([]byte("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	defer record.Release()
	if _, err := Column(record, "c"); err == nil {
		t.Error("expected an error for a missing column")
	}
}
