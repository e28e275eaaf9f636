package analysis

import (
	"errors"
	"fmt"
)

// GenericFailureMessage is used when the service gives no usable reason.
const GenericFailureMessage = "Analysis failed"

// ErrNoAssetSelected is returned by Submit when there is nothing to upload.
var ErrNoAssetSelected = errors.New("analysis: no video selected")

// ServiceError is a response that arrived but is not a usable result: a
// non-2xx status, or a 2xx with a body that is not a JSON object.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.StatusCode == 0 {
		return "analysis service: " + e.Message
	}
	return fmt.Sprintf("analysis service: %s (status %d)", e.Message, e.StatusCode)
}

// TransportError means no response was received.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	return "analysis transport: " + e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
