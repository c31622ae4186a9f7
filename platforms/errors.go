package platforms

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a registry reports a package as missing.
var ErrNotFound = errors.New("not found")

// HTTPError is a non-2xx registry response.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound reports whether the response was a 404.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == 404
}

// NotFoundError wraps ErrNotFound with the package that was missing.
type NotFoundError struct {
	Platform string
	Name     string
	Version  string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s: package %s version %s not found", e.Platform, e.Name, e.Version)
	}
	return fmt.Sprintf("%s: package %s not found", e.Platform, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
