package collective

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedGraph is returned while building a graph that can never run:
// a join without precursors, an edge to an unknown action, a cycle.
var ErrMalformedGraph = errors.New("malformed collective graph")

var (
	errAlreadyStarted = errors.New("collective already started")
	errNotStarted     = errors.New("collective not started")
)

// TransferFailed reports a transport failure of one action.
type TransferFailed struct {
	Action ActionID
	Cause  error
}

func (e *TransferFailed) Error() string {
	return fmt.Sprintf("transfer failed for %s: %v", e.Action, e.Cause)
}

func (e *TransferFailed) Unwrap() error { return e.Cause }

func malformed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedGraph, format, args...)
}
