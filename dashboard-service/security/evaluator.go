package security

import (
	"time"
)

// Status is the outcome of a lockout evaluation
type Status struct {
	Locked     bool
	LockoutEnd time.Time
}

// RemainingAt returns the lock time left at the given instant
func (s Status) RemainingAt(now time.Time) time.Duration {
	if !s.Locked {
		return 0
	}
	return s.LockoutEnd.Sub(now)
}

// Evaluator decides whether an IP is locked by consulting the ledger.
// The decision is recomputed from store state on every call.
type Evaluator struct {
	store  *LogStore
	window time.Duration
}

// NewEvaluator creates an evaluator with the given trailing lockout window
func NewEvaluator(store *LogStore, window time.Duration) *Evaluator {
	return &Evaluator{store: store, window: window}
}

// Window returns the configured lockout window length
func (e *Evaluator) Window() time.Duration {
	return e.window
}

// IsLocked reports whether the IP is locked at the given instant. An IP is
// locked iff an unresolved entry exists within the trailing window; the lock
// ends one window after the newest such entry. Unidentifiable clients are
// never locked.
func (e *Evaluator) IsLocked(ip string, now time.Time) (Status, error) {
	if ip == UnknownIP {
		return Status{}, nil
	}

	entry, err := e.store.QueryActiveForIP(ip, now.Add(-e.window))
	if err != nil {
		return Status{}, err
	}
	if entry == nil {
		return Status{}, nil
	}

	end := entry.CreatedAt.Add(e.window)
	if !now.Before(end) {
		return Status{}, nil
	}

	return Status{Locked: true, LockoutEnd: end}, nil
}
