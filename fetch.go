package erddap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Fetcher retrieves the raw bytes behind a URL. The library never retries on
// its own; any retry policy lives in the Fetcher implementation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Credentials is a basic-auth user/password pair.
type Credentials struct {
	User     string
	Password string
}

// HTTPFetcher is the default Fetcher. It follows redirects, applies a
// per-request timeout, and retries transient failures (connection errors and
// 5xx responses) with exponential backoff. Client-side errors (4xx) are not
// retried.
type HTTPFetcher struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// Timeout bounds each attempt. Defaults to 60s.
	Timeout time.Duration
	// Auth, when set, is sent as HTTP basic auth.
	Auth *Credentials
	// MaxRetries caps the retry attempts after the first try.
	MaxRetries uint64
}

const defaultFetchTimeout = 60 * time.Second

// Fetch performs a GET against url and returns the response body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := f.Timeout
	if timeout == 0 {
		timeout = defaultFetchTimeout
	}

	var body []byte
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(&FetchError{URL: url, Err: err})
		}
		if f.Auth != nil {
			req.SetBasicAuth(f.Auth.User, f.Auth.Password)
		}

		resp, err := client.Do(req)
		if err != nil {
			return &FetchError{URL: url, Err: err}
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
			ferr := &FetchError{URL: url, StatusCode: resp.StatusCode}
			if resp.StatusCode >= 500 {
				return ferr
			}
			return backoff.Permanent(ferr)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.MaxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}
