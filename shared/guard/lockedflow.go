package guard

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// FlowState is the locked surface's client-visible state
type FlowState int

const (
	StateChecking FlowState = iota
	StateLocked
	StateUnlocking
	StateReleased
)

func (s FlowState) String() string {
	switch s {
	case StateChecking:
		return "CHECKING"
	case StateLocked:
		return "LOCKED"
	case StateUnlocking:
		return "UNLOCKING"
	case StateReleased:
		return "RELEASED"
	}
	return "UNKNOWN"
}

// ErrInvalidKey is returned when the override secret is rejected
var ErrInvalidKey = errors.New("invalid security key")

// FlowCallbacks surface state for rendering
type FlowCallbacks struct {
	// OnStateChange fires on every state transition
	OnStateChange func(state FlowState)

	// OnTick fires once per second with the remaining lock time
	OnTick func(remaining time.Duration)
}

// LockedFlow drives the locked surface: it resolves the lockout end from
// the server (falling back to the local cache), runs the advisory countdown
// and handles override submissions. The countdown reaching zero releases
// locally without another server round trip; server state stays the
// authority for actual access.
type LockedFlow struct {
	client    *Client
	cache     *LockoutCache
	callbacks FlowCallbacks

	mu         sync.Mutex
	state      FlowState
	lockoutEnd time.Time
}

// NewLockedFlow creates a flow in the CHECKING state
func NewLockedFlow(client *Client, cache *LockoutCache, callbacks FlowCallbacks) *LockedFlow {
	return &LockedFlow{
		client:    client,
		cache:     cache,
		callbacks: callbacks,
		state:     StateChecking,
	}
}

// State returns the current state
func (f *LockedFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LockoutEnd returns the resolved lock expiry (zero until known)
func (f *LockedFlow) LockoutEnd() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lockoutEnd
}

// Run resolves the lockout state and drives the countdown until release or
// ctx cancellation. It returns nil when the flow reached RELEASED.
func (f *LockedFlow) Run(ctx context.Context) error {
	end, locked := f.resolveLockoutEnd()
	if !locked {
		// Stale or expired redirect: nothing locks this client
		f.release(false)
		return nil
	}

	f.mu.Lock()
	f.lockoutEnd = end
	f.mu.Unlock()
	f.setState(StateLocked)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if f.State() == StateReleased {
				return nil
			}

			remaining := f.LockoutEnd().Sub(now)
			if remaining <= 0 {
				// Optimistic local expiry: clear cache, no server re-check
				f.release(true)
				return nil
			}

			if f.callbacks.OnTick != nil {
				f.callbacks.OnTick(remaining)
			}
		}
	}
}

// SubmitKey runs the override path. On success the flow is RELEASED; on
// rejection it returns ErrInvalidKey and stays LOCKED.
func (f *LockedFlow) SubmitKey(key string) error {
	f.setState(StateUnlocking)

	result, err := f.client.Unlock(key)
	if err != nil {
		f.setState(StateLocked)
		return err
	}

	if !result.Success {
		f.setState(StateLocked)
		return ErrInvalidKey
	}

	f.release(true)
	return nil
}

// resolveLockoutEnd asks the server first, then falls back to the cache
func (f *LockedFlow) resolveLockoutEnd() (time.Time, bool) {
	status, err := f.client.CheckIPLockout()
	if err == nil && status.Locked {
		end := time.UnixMilli(status.LockoutEnd)
		if f.cache != nil {
			if err := f.cache.Set(end); err != nil {
				log.Printf("Failed to cache lockout expiry: %v", err)
			}
		}
		return end, true
	}

	// Not locked server-side (or unreachable): consult the local cache
	if f.cache != nil {
		if until, ok := f.cache.Get(); ok && until.After(time.Now()) {
			return until, true
		}
	}

	return time.Time{}, false
}

func (f *LockedFlow) release(clearCache bool) {
	if clearCache && f.cache != nil {
		f.cache.Clear()
	}
	f.setState(StateReleased)
}

func (f *LockedFlow) setState(state FlowState) {
	f.mu.Lock()
	if f.state == state {
		f.mu.Unlock()
		return
	}
	f.state = state
	f.mu.Unlock()

	if f.callbacks.OnStateChange != nil {
		f.callbacks.OnStateChange(state)
	}
}
