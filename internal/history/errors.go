package history

import (
	"errors"
	"fmt"
)

// ErrStaleResponse marks a fetch result that arrived after its conversation
// stopped being the active one. Callers discard the result silently; nothing
// is surfaced to the user.
var ErrStaleResponse = errors.New("history: stale response")

// FetchError wraps a failed REST call during pagination or reply lookup.
// The operation is surfaced to the caller as rejected; any state merged
// before the failure is preserved and the UI offers a retry.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("history: %s failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
