package erddap

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
)

// withTestRegistry injects a substitute server registry for the test's
// duration so no test touches the network through the registry.
func withTestRegistry(t *testing.T) {
	t.Helper()
	SetServers(map[string]Server{
		"ngdac":   {Description: "Glider DAC", URL: "https://gliders.ioos.us/erddap/"},
		"secoora": {Description: "SECOORA", URL: "http://erddap.secoora.org/erddap/"},
	})
	t.Cleanup(func() { SetServers(nil) })
}

// TestNew tests server normalization and short-name resolution.
func TestNew(t *testing.T) {
	withTestRegistry(t)

	client := New("https://gliders.ioos.us/erddap/")
	if client.Server != "https://gliders.ioos.us/erddap" {
		t.Errorf("trailing slash not stripped: %q", client.Server)
	}
	if client.Response != "html" {
		t.Errorf("default response = %q, want html", client.Response)
	}

	// Short names resolve case-insensitively.
	for _, name := range []string{"NGDAC", "ngdac", "NgDaC"} {
		client := New(name)
		if client.Server != "https://gliders.ioos.us/erddap" {
			t.Errorf("New(%q).Server = %q", name, client.Server)
		}
	}

	// Unknown names pass through as URLs.
	client = New("https://example.org/erddap")
	if client.Server != "https://example.org/erddap" {
		t.Errorf("unknown server rewritten: %q", client.Server)
	}
}

// TestClientSearchURL tests that client state fills omitted options.
func TestClientSearchURL(t *testing.T) {
	withTestRegistry(t)
	client := New("NGDAC", WithProtocol("tabledap"), WithResponse("htmlTable"))

	u, err := client.SearchURL(SearchOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(u, "https://gliders.ioos.us/erddap/search/advanced.htmlTable?") {
		t.Errorf("unexpected prefix: %q", u)
	}
	if !strings.Contains(u, "&protocol=tabledap") {
		t.Errorf("client protocol not applied: %q", u)
	}
}

// TestGriddapInitialize tests the full initialize-narrow-build flow.
func TestGriddapInitialize(t *testing.T) {
	withTestRegistry(t)
	datasetURL := "https://x/erddap/griddap/d1"
	fetcher := testGriddapFetcher(datasetURL)
	client := New("https://x/erddap", WithProtocol("griddap"), WithResponse("nc"), WithFetcher(fetcher))

	if err := client.GriddapInitialize(context.Background(), "d1", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.DatasetID != "d1" {
		t.Errorf("dataset id not stored: %q", client.DatasetID)
	}

	// Narrow the time range; build a URL with defaults from client state.
	client.Constraints.Set("time>=", 50.0)
	client.Variables = []string{"sst"}
	u, err := client.DownloadURL(DownloadOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "https://x/erddap/griddap/d1.nc?sst[(50.0):1:(100.0)][(-10.0):1:(10.0)]"
	if u != want {
		t.Errorf("DownloadURL = %q, want %q", u, want)
	}
}

// TestGriddapInitialize_SnapshotIsolation tests that the validation
// snapshot does not alias the live constraints.
func TestGriddapInitialize_SnapshotIsolation(t *testing.T) {
	withTestRegistry(t)
	datasetURL := "https://x/erddap/griddap/d1"
	client := New("https://x/erddap", WithProtocol("griddap"), WithResponse("nc"),
		WithFetcher(testGriddapFetcher(datasetURL)))

	if err := client.GriddapInitialize(context.Background(), "d1", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Mutating the live constraints must not leak into the snapshot, so a
	// value edit still validates.
	client.Constraints.Set("time>=", 99.0)
	if _, err := client.DownloadURL(DownloadOptions{}); err != nil {
		t.Errorf("value edit rejected: %v", err)
	}

	// Removing a key trips validation.
	client.Constraints.Delete("latitude_step")
	if _, err := client.DownloadURL(DownloadOptions{}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation after key removal, got %v", err)
	}
	client.Constraints.Set("latitude_step", 1)

	// Requesting an unknown variable trips validation.
	client.Variables = []string{"sst", "bogus"}
	if _, err := client.DownloadURL(DownloadOptions{}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown variable, got %v", err)
	}
}

// TestGriddapInitialize_Errors tests the protocol and dataset id policies.
func TestGriddapInitialize_Errors(t *testing.T) {
	withTestRegistry(t)

	// Strict policy: the call is an error on a tabledap client.
	client := New("https://x/erddap", WithProtocol("tabledap"))
	if err := client.GriddapInitialize(context.Background(), "d1", 1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for tabledap client, got %v", err)
	}

	client = New("https://x/erddap", WithProtocol("griddap"))
	if err := client.GriddapInitialize(context.Background(), "", 1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument without dataset id, got %v", err)
	}

	// The opendap response has nothing to slice; no fetches happen.
	fetcher := &fakeFetcher{responses: map[string]string{}}
	client = New("https://x/erddap", WithProtocol("griddap"), WithResponse("opendap"), WithFetcher(fetcher))
	if err := client.GriddapInitialize(context.Background(), "d1", 1); err != nil {
		t.Errorf("unexpected error for opendap response: %v", err)
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("opendap initialize fetched %v", fetcher.calls)
	}
}

// TestDatasetVariables tests info CSV parsing and memoization.
func TestDatasetVariables(t *testing.T) {
	withTestRegistry(t)
	infoCSV := "Row Type,Variable Name,Attribute Name,Data Type,Value\n" +
		"variable,time,,double,\n" +
		"attribute,time,axis,String,T\n" +
		"attribute,time,standard_name,String,time\n" +
		"variable,salinity,,float,\n" +
		"attribute,salinity,standard_name,String,sea_water_practical_salinity\n"
	fetcher := &fakeFetcher{responses: map[string]string{
		"https://x/erddap/info/d1/index.csv": infoCSV,
	}}
	client := New("https://x/erddap", WithFetcher(fetcher))

	variables, err := client.DatasetVariables(context.Background(), "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if variables["time"]["axis"] != "T" {
		t.Errorf("time axis attribute = %q, want T", variables["time"]["axis"])
	}

	names, err := client.VarByAttr(context.Background(), "d1", "standard_name", func(v string) bool {
		return v == "sea_water_practical_salinity"
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 1 || names[0] != "salinity" {
		t.Errorf("VarByAttr = %v, want [salinity]", names)
	}

	// Second lookup is served from the memo, not the fetcher.
	calls := len(fetcher.calls)
	if _, err := client.DatasetVariables(context.Background(), "d1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fetcher.calls) != calls {
		t.Errorf("info response not memoized: %d fetches", len(fetcher.calls))
	}
}

// TestDownloadFile tests format validation, file naming and reuse.
func TestDownloadFile(t *testing.T) {
	withTestRegistry(t)
	t.Chdir(t.TempDir())

	fetcher := &fakeFetcher{responses: map[string]string{
		"https://x/erddap/tabledap/d1.csv?": "a,b\n1,2\n",
	}}
	client := New("https://x/erddap", WithProtocol("tabledap"), WithFetcher(fetcher))
	client.DatasetID = "d1"

	if _, err := client.DownloadFile(context.Background(), "bogus"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unsupported format, got %v", err)
	}

	name, err := client.DownloadFile(context.Background(), ".csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(name, "d1_") || !strings.HasSuffix(name, ".csv") {
		t.Errorf("unexpected file name %q", name)
	}
	payload, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("cannot read downloaded file: %v", err)
	}
	if string(payload) != "a,b\n1,2\n" {
		t.Errorf("file content = %q", payload)
	}

	// A second call reuses the existing file without fetching.
	calls := len(fetcher.calls)
	again, err := client.DownloadFile(context.Background(), "csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again != name {
		t.Errorf("file name changed between calls: %q vs %q", again, name)
	}
	if len(fetcher.calls) != calls {
		t.Errorf("cached download fetched again: %d fetches", len(fetcher.calls))
	}
}
