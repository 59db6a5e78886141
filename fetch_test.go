package erddap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// TestHTTPFetcher tests the happy path and basic-auth propagation.
func TestHTTPFetcher(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	fetcher := &HTTPFetcher{Auth: &Credentials{User: "user", Password: "secret"}}
	body, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("body = %q, want payload", body)
	}
	if gotAuth == "" {
		t.Error("basic auth header not sent")
	}
}

// TestHTTPFetcher_ClientError tests that 4xx responses fail immediately.
func TestHTTPFetcher_ClientError(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "no such dataset", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := &HTTPFetcher{MaxRetries: 3}
	_, err := fetcher.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	var ferr *FetchError
	if !errors.As(err, &ferr) || ferr.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected error detail: %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Errorf("client error retried: %d attempts", n)
	}
}

// TestHTTPFetcher_ServerErrorRetry tests that 5xx responses are retried
// until the server recovers.
func TestHTTPFetcher_ServerErrorRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer server.Close()

	fetcher := &HTTPFetcher{MaxRetries: 5}
	body, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "recovered" {
		t.Errorf("body = %q, want recovered", body)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

// TestHTTPFetcher_RetriesExhausted tests that persistent 5xx responses
// surface the last error once the retry budget is spent.
func TestHTTPFetcher_RetriesExhausted(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := &HTTPFetcher{MaxRetries: 2}
	_, err := fetcher.Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}
