package backend

import (
	"sync"
	"sync/atomic"

	"github.com/torosent/crankdb/internal/dberr"
)

// Handle shares one Backend between execution contexts. Each context holds
// one reference; the Backend is closed when the last reference is released.
type Handle struct {
	Backend

	refs     atomic.Int64
	closeErr error
	once     sync.Once
}

// NewHandle wraps b with a single reference held by the caller.
func NewHandle(b Backend) *Handle {
	h := &Handle{Backend: b}
	h.refs.Store(1)
	return h
}

// Acquire adds a reference. It fails once the handle has been closed.
func (h *Handle) Acquire() (*Handle, error) {
	for {
		n := h.refs.Load()
		if n <= 0 {
			return nil, dberr.New(dberr.KindConnection, "backend %s already closed", h.Name())
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return h, nil
		}
	}
}

// Release drops a reference, closing the backend when none remain. Extra
// releases are no-ops returning the original close error.
func (h *Handle) Release() error {
	n := h.refs.Add(-1)
	if n == 0 {
		h.once.Do(func() { h.closeErr = h.Backend.Close() })
		return h.closeErr
	}
	if n < 0 {
		h.refs.Add(1)
		// Waits for the closing Release to finish.
		h.once.Do(func() {})
		return h.closeErr
	}
	return nil
}

// Refs reports the live reference count.
func (h *Handle) Refs() int64 { return h.refs.Load() }

// Close releases the caller's reference rather than closing the driver.
func (h *Handle) Close() error { return h.Release() }
