package core

import "sync"

// CancellationToken is a shared, monotonic cancellation flag for one call
// chain. Once signaled it never un-signals; every pending operation observing
// it must fail fast with ErrCancelled instead of proceeding. Signaling is
// advisory: already-completed sub-operations are not rolled back.
type CancellationToken struct {
	mu        sync.Mutex
	done      chan struct{}
	cancelled bool
	callbacks []func()
}

// NewCancellationToken returns an unsignaled token.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{done: make(chan struct{})}
}

// Cancel signals the token and runs registered callbacks exactly once.
// Subsequent calls are no-ops.
func (t *CancellationToken) Cancel() {
	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	callbacks := t.callbacks
	t.callbacks = nil
	close(t.done)
	t.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Cancelled reports whether the token has been signaled.
func (t *CancellationToken) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Done returns a channel closed when the token is signaled, for use in
// select loops alongside context cancellation.
func (t *CancellationToken) Done() <-chan struct{} { return t.done }

// Err returns ErrCancelled once the token is signaled, nil before.
func (t *CancellationToken) Err() error {
	if t.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// OnCancel registers fn to run when the token is signaled. If the token is
// already signaled fn runs immediately on the calling goroutine.
func (t *CancellationToken) OnCancel(fn func()) {
	t.mu.Lock()
	if !t.cancelled {
		t.callbacks = append(t.callbacks, fn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	fn()
}
