package guard

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	seclog "expoboard-backend/shared/database/models/security"
)

// Callbacks are invoked by the session guard when it acts on a transition.
// They run on the guard's goroutines and should return quickly.
type Callbacks struct {
	// OnForcedLogout fires after the guard has logged the event, cached the
	// local lockout and signed the session out.
	OnForcedLogout func()

	// OnMaintenance fires when maintenance mode changes (true only for
	// non-admin sessions; false for everyone so clients can leave the
	// maintenance page).
	OnMaintenance func(enabled bool)
}

// pushEvent mirrors the server's realtime event payload
type pushEvent struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Value  string `json:"value"`
}

// SessionGuard watches the force-logout marker and maintenance flag for an
// authenticated session, over both a WebSocket subscription and a poll
// fallback. Both channels feed one reducer keyed on last-seen values, so a
// transition observed twice acts exactly once.
type SessionGuard struct {
	client        *Client
	cache         *LockoutCache
	userID        string
	pollInterval  time.Duration
	lockoutWindow time.Duration
	callbacks     Callbacks

	mu                sync.Mutex
	seeded            bool
	lastForceLogoutAt string
	lastMaintenance   *bool
	isAdmin           bool
	actedOnLogout     bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionGuard creates a guard for the given authenticated user
func NewSessionGuard(client *Client, cache *LockoutCache, userID string, pollInterval, lockoutWindow time.Duration, callbacks Callbacks) *SessionGuard {
	return &SessionGuard{
		client:        client,
		cache:         cache,
		userID:        userID,
		pollInterval:  pollInterval,
		lockoutWindow: lockoutWindow,
		callbacks:     callbacks,
	}
}

// Start seeds the last-seen state and launches the push and poll loops.
// Stop (or cancelling ctx) tears both down.
func (g *SessionGuard) Start(ctx context.Context) error {
	status, err := g.client.SessionStatus()
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.lastForceLogoutAt = normalizeTimestamp(status.ForceLogoutAt)
	g.isAdmin = status.Role == "admin"
	g.seeded = true
	g.mu.Unlock()

	// Initial maintenance observation acts like a change so a session
	// opened during maintenance is redirected immediately
	g.observeMaintenance(status.MaintenanceMode)

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	g.wg.Add(2)
	go g.pollLoop(runCtx)
	go g.pushLoop(runCtx)

	return nil
}

// Stop tears down the poll ticker and push subscription
func (g *SessionGuard) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
}

func (g *SessionGuard) pollLoop(ctx context.Context) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := g.client.SessionStatus()
			if err != nil {
				log.Printf("Session guard poll failed: %v", err)
				continue
			}

			g.observeMaintenance(status.MaintenanceMode)
			g.observeForceLogout(normalizeTimestamp(status.ForceLogoutAt), seclog.ReasonForceLogoutPolling)
		}
	}
}

func (g *SessionGuard) pushLoop(ctx context.Context) {
	defer g.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.client.WebSocketURL(g.userID), nil)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(g.pollInterval):
				continue
			}
		}

		g.readEvents(ctx, conn)
		conn.Close()
	}
}

func (g *SessionGuard) readEvents(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var event pushEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			continue
		}

		switch event.Type {
		case "maintenance_mode":
			g.observeMaintenance(event.Value == "true")
		case "force_logout":
			if event.UserID == "" || event.UserID == g.userID {
				g.observeForceLogout(normalizeRaw(event.Value), seclog.ReasonForceLogout)
			}
		}
	}
}

// observeForceLogout is the reducer for the force-logout signal: it acts
// exactly once per actual transition, regardless of which channel saw it.
func (g *SessionGuard) observeForceLogout(value, reason string) {
	g.mu.Lock()
	if !g.seeded || value == g.lastForceLogoutAt || g.actedOnLogout {
		g.lastForceLogoutAt = value
		g.mu.Unlock()
		return
	}
	g.lastForceLogoutAt = value
	g.actedOnLogout = true
	g.mu.Unlock()

	// Attribute the event to this session before the sign-out
	if err := g.client.LogSecurityEvent(g.userID, reason); err != nil {
		log.Printf("Failed to log forced-logout event: %v", err)
	}

	if g.cache != nil {
		if err := g.cache.Set(time.Now().Add(g.lockoutWindow)); err != nil {
			log.Printf("Failed to cache lockout expiry: %v", err)
		}
	}

	if err := g.client.Signout(); err != nil {
		log.Printf("Sign-out after forced logout failed: %v", err)
	}

	if g.callbacks.OnForcedLogout != nil {
		g.callbacks.OnForcedLogout()
	}
}

// observeMaintenance is the reducer for the maintenance flag
func (g *SessionGuard) observeMaintenance(enabled bool) {
	g.mu.Lock()
	if g.lastMaintenance != nil && *g.lastMaintenance == enabled {
		g.mu.Unlock()
		return
	}
	g.lastMaintenance = &enabled
	isAdmin := g.isAdmin
	g.mu.Unlock()

	if g.callbacks.OnMaintenance == nil {
		return
	}

	// Admins keep working through maintenance; everyone hears it end
	if enabled && isAdmin {
		return
	}
	g.callbacks.OnMaintenance(enabled)
}

// normalizeTimestamp renders a nullable timestamp in a channel-independent form
func normalizeTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// normalizeRaw parses a pushed timestamp string into the same form
func normalizeRaw(value string) string {
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return value
}
