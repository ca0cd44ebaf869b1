package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkFetch indicates that an asset could not be retrieved from the
	// remote provider: transport failure, timeout or non-success status.
	ErrNetworkFetch = errors.New("network fetch failed")

	// ErrUnsupportedScheme indicates a URL scheme no fetcher is registered for.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// StatusError reports a non-success response from the remote provider.
//
// It matches ErrNetworkFetch with errors.Is.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNetworkFetch
}

// StatusCode extracts the remote status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
