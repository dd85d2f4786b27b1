package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrSensorNotFound means no sensor exists for the given id or name.
	ErrSensorNotFound = errors.New("sensor not found")

	// ErrDuplicateName means a sensor with the requested name already exists.
	ErrDuplicateName = errors.New("sensor with same name already registered")

	// ErrInvalidQuery means the search query or query type was malformed.
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrInvalidBucket means the bucket selector is not one of
	// hour, day, week, month, year.
	ErrInvalidBucket = errors.New("invalid bucket")

	// ErrCacheMiss means no cached reading exists for the sensor.
	ErrCacheMiss = errors.New("no cached reading")
)

// PartialWriteError reports a multi-store write sequence that failed after
// one or more steps had already committed. Nothing is rolled back; the
// applied steps are listed so an operator can reconcile by hand.
type PartialWriteError struct {
	Op      string
	Step    string
	Applied []string
	Err     error
}

func (e *PartialWriteError) Error() string {
	if len(e.Applied) == 0 {
		return fmt.Sprintf("%s: step %q failed: %v", e.Op, e.Step, e.Err)
	}
	return fmt.Sprintf("%s: step %q failed after [%s] committed: %v",
		e.Op, e.Step, strings.Join(e.Applied, ", "), e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
