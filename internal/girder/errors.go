package girder

import (
	"errors"
	"fmt"
)

// StatusError is returned when the server answers with a non-2xx status.
// The raw response body is kept for diagnostics; Girder puts its error
// message there as JSON.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// HasStatus reports whether err is (or wraps) a StatusError with the given
// HTTP status code.
func HasStatus(err error, code int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == code
	}
	return false
}

// ErrNoToken indicates an authentication response that did not set the
// girderToken cookie.
var ErrNoToken = errors.New("server response did not set girderToken")

// decodeError describes a response that parsed as JSON but was missing an
// expected field, naming the field for diagnostics.
func decodeError(what, field string) error {
	return fmt.Errorf("invalid response to %s: unable to extract %s", what, field)
}
