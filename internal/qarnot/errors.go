package qarnot

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned when a task, bucket or object does not
	// exist on the remote service.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is not valid for the
	// current state of the task, e.g. aborting a finished task.
	ErrInvalidState = errors.New("invalid task state")
)

// APIError carries a non-2xx response from the cluster API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("qarnot api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("qarnot api: status %d: %s", e.StatusCode, e.Message)
}
