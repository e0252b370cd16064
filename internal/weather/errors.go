package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers connection, DNS and open-circuit failures.
	ErrTransport = errors.New("transport error")
	// ErrTimeout is returned when a request deadline is exceeded.
	ErrTimeout = errors.New("request timed out")
	// ErrPayloadTooShort marks a primary response judged unusable.
	ErrPayloadTooShort = errors.New("payload too short")
	// ErrStructure marks an expected key or shape missing from a response.
	ErrStructure = errors.New("unexpected payload structure")
	// ErrAggregation is returned when an average or wind aggregate has no inputs.
	ErrAggregation = errors.New("aggregation failed")
	// ErrUnknownIdentifier is returned for names outside the fixed catalog.
	ErrUnknownIdentifier = errors.New("unknown identifier")
	// ErrUpdateFailed is returned when a cycle publishes nothing.
	ErrUpdateFailed = errors.New("update failed")
	// ErrCycleInProgress is returned when a cycle is triggered while one runs.
	ErrCycleInProgress = errors.New("update cycle already running")
)

// HTTPStatusError is returned for non-2xx responses.
type HTTPStatusError struct {
	Code int
	URL  string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.Code, e.URL)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// IsFallbackError reports whether a primary-source failure should be
// retried against the secondary source.
func IsFallbackError(err error) bool {
	if err == nil {
		return false
	}
	if StatusCode(err) != 0 {
		return true
	}
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrPayloadTooShort)
}

// StructureError builds an ErrStructure for a dataset field path.
func StructureError(kind DatasetKind, field string) error {
	return fmt.Errorf("%w: %s: %s", ErrStructure, kind, field)
}
