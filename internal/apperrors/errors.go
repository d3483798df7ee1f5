// Package apperrors defines the error taxonomy shared by the proxy's
// collaborators. Each class maps to an HTTP status at the server boundary so
// handlers never inspect error strings.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoDataAvailable is returned when every quality tier has been exhausted
// without a successful response.
var ErrNoDataAvailable = errors.New("No solar data available for this location")

// ValidationError reports missing or malformed caller input. Rejected before
// any network call is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NetworkError reports a transport-level failure reaching an upstream,
// including timeouts. Distinct from UpstreamError so callers can decide
// retry policy.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UpstreamError reports that an upstream was reachable but returned a
// semantic failure (non-OK status, zero results). Status carries the
// provider's own status code or string for diagnosability.
type UpstreamError struct {
	Provider string
	Status   string
	Msg      string
}

func (e *UpstreamError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s returned status %s: %s", e.Provider, e.Status, e.Msg)
	}
	return fmt.Sprintf("%s returned status %s", e.Provider, e.Status)
}

// FetchError reports a failed raw tile byte fetch.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch tile: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DecodeError reports raster bytes that could not be parsed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode raster: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnsupportedFormat reports a raster with too few channels for the
// requested layer kind.
type UnsupportedFormat struct {
	Needed int
	Got    int
}

func (e *UnsupportedFormat) Error() string {
	return fmt.Sprintf("raster has %d channels, need at least %d", e.Got, e.Needed)
}

// HTTPStatus maps an error to the response status code. Unknown errors are
// generic server failures; each request's failure is isolated to that
// request.
func HTTPStatus(err error) int {
	var (
		validation  *ValidationError
		network     *NetworkError
		upstream    *UpstreamError
		fetch       *FetchError
		decode      *DecodeError
		unsupported *UnsupportedFormat
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoDataAvailable):
		return http.StatusNotFound
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &network), errors.As(err, &upstream), errors.As(err, &fetch), errors.As(err, &decode):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
