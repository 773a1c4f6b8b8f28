package sync

import (
	"errors"
	"fmt"
)

// ErrNoDeviceName is returned when a run is started without a device identity.
var ErrNoDeviceName = errors.New("device name not set")

// Kind classifies why a run failed.
type Kind int

const (
	// KindPrecondition means the run never touched the store: no device
	// name, or the tab snapshot could not be read.
	KindPrecondition Kind = iota + 1

	// KindConnectivity means the store could not be reached.
	KindConnectivity

	// KindConstraint means one or more claims lost a race on the unique
	// url constraint. All other rows were applied.
	KindConstraint

	// KindPartial means a store operation failed mid-run. Writes applied
	// before the failure are kept.
	KindPartial
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindConnectivity:
		return "connectivity"
	case KindConstraint:
		return "constraint"
	case KindPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// RunError is the single error a reconciliation run reports to its invoker.
type RunError struct {
	Kind Kind
	// Op is the step that failed: "validate", "read", "open", "acquire",
	// "delete", "resolve", "insert" or "update".
	Op string
	// URL is set when the failure concerns one tab.
	URL string
	Err error
}

func (e *RunError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("sync %s error during %s of %s: %v", e.Kind, e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("sync %s error during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a RunError of the given kind.
func IsKind(err error, kind Kind) bool {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Kind == kind
	}
	return false
}

// ConflictError lists the URLs whose claims were rejected because another
// device inserted them first.
type ConflictError struct {
	URLs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d url(s) claimed concurrently by another device: %v", len(e.URLs), e.URLs)
}
