package bulkimport

import "sync/atomic"

// CancelToken is a one-way cancellation flag polled by the batch loop at
// batch boundaries. The zero value is ready to use; a nil token is never
// cancelled.
type CancelToken struct {
	cancelled atomic.Bool
}

// NewCancelToken returns an unset token.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel sets the flag. Calling it more than once is harmless.
func (t *CancelToken) Cancel() {
	if t != nil {
		t.cancelled.Store(true)
	}
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	return t != nil && t.cancelled.Load()
}
