package refetch

import (
	"errors"
	"fmt"
)

// ErrSuperseded is returned by Execute when a newer attempt for the same key
// was started while this one was in flight. It is not a failure: the newer
// attempt owns the consumer-visible state, and this result was discarded.
// Never surfaced through RequestState and never passed to OnError.
var ErrSuperseded = errors.New("refetch: attempt superseded")

// InvalidateError reports a partial invalidation: the pending generation was
// cancelled but the cache entry could not be deleted.
type InvalidateError struct {
	Key    string
	DelErr error
}

func (e *InvalidateError) Error() string {
	return fmt.Sprintf("invalidate %q: delete failed: %v", e.Key, e.DelErr)
}

func (e *InvalidateError) Unwrap() error { return e.DelErr }
