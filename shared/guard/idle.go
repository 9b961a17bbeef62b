package guard

import (
	"sync"
	"time"
)

// IdleTimer fires a callback after a period without activity. It is an
// owned handle: Stop always cancels the pending fire, and a stopped timer
// never fires again. Idle timeout is unrelated to IP lockout - the callback
// should perform a normal sign-out.
type IdleTimer struct {
	mu        sync.Mutex
	timeout   time.Duration
	timer     *time.Timer
	onTimeout func()
	stopped   bool
}

// NewIdleTimer creates and arms an idle timer
func NewIdleTimer(timeout time.Duration, onTimeout func()) *IdleTimer {
	t := &IdleTimer{
		timeout:   timeout,
		onTimeout: onTimeout,
	}
	t.timer = time.AfterFunc(timeout, t.fire)
	return t
}

// Reset restarts the countdown; call it on user activity
func (t *IdleTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}

	t.timer.Stop()
	t.timer = time.AfterFunc(t.timeout, t.fire)
}

// Stop cancels the timer permanently
func (t *IdleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.timer.Stop()
}

func (t *IdleTimer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	t.onTimeout()
}
