package erddap

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds this package produces. Callers match
// them with errors.Is; wrapped messages carry the specifics.
var (
	// ErrInvalidArgument reports a missing or unusable caller-supplied
	// parameter, e.g. an empty dataset id or protocol.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrParse reports a malformed date string or griddap descriptor
	// document.
	ErrParse = errors.New("parse error")

	// ErrValidation reports a griddap constraint or variable set that no
	// longer matches the dataset metadata.
	ErrValidation = errors.New("validation error")

	// ErrFetch reports a failed network fetch (connection failure, timeout,
	// or non-2xx response).
	ErrFetch = errors.New("fetch error")
)

// FetchError describes a failed HTTP fetch. StatusCode is zero when the
// request never produced a response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetch) hold for every FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }
