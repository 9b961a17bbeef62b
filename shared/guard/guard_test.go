package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	seclog "expoboard-backend/shared/database/models/security"
)

type guardServer struct {
	mu           sync.Mutex
	eventReasons []string
	signouts     int
	status       SessionStatus
	*httptest.Server
}

func newGuardServer(t *testing.T) *guardServer {
	t.Helper()
	gs := &guardServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/session/status", func(w http.ResponseWriter, r *http.Request) {
		gs.mu.Lock()
		status := gs.status
		gs.mu.Unlock()
		json.NewEncoder(w).Encode(status)
	})
	mux.HandleFunc("/api/security/events", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Reason string `json:"reason"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		gs.mu.Lock()
		gs.eventReasons = append(gs.eventReasons, payload.Reason)
		gs.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/api/auth/signout", func(w http.ResponseWriter, r *http.Request) {
		gs.mu.Lock()
		gs.signouts++
		gs.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})

	gs.Server = httptest.NewServer(mux)
	t.Cleanup(gs.Close)
	return gs
}

func (gs *guardServer) snapshot() ([]string, int) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return append([]string(nil), gs.eventReasons...), gs.signouts
}

func newSeededGuard(t *testing.T, server *guardServer, callbacks Callbacks) (*SessionGuard, *LockoutCache) {
	t.Helper()
	cache := newTestCache(t)
	g := NewSessionGuard(NewClient(server.URL), cache, "user-1", 50*time.Millisecond, 24*time.Hour, callbacks)
	g.mu.Lock()
	g.seeded = true
	g.lastForceLogoutAt = ""
	g.mu.Unlock()
	return g, cache
}

func TestForceLogoutTransitionActsOnce(t *testing.T) {
	server := newGuardServer(t)

	logoutFired := 0
	g, cache := newSeededGuard(t, server, Callbacks{
		OnForcedLogout: func() { logoutFired++ },
	})

	marker := time.Now().UTC().Format(time.RFC3339Nano)
	g.observeForceLogout(marker, seclog.ReasonForceLogout)

	reasons, signouts := server.snapshot()
	require.Equal(t, []string{seclog.ReasonForceLogout}, reasons)
	assert.Equal(t, 1, signouts)
	assert.Equal(t, 1, logoutFired)

	// The local lockout covers the full window
	until, ok := cache.Get()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), until, time.Minute)

	// The same marker seen again, from either channel, does nothing
	g.observeForceLogout(marker, seclog.ReasonForceLogoutPolling)
	reasons, signouts = server.snapshot()
	assert.Len(t, reasons, 1)
	assert.Equal(t, 1, signouts)
	assert.Equal(t, 1, logoutFired)
}

func TestForceLogoutIgnoredBeforeSeed(t *testing.T) {
	server := newGuardServer(t)
	cache := newTestCache(t)
	g := NewSessionGuard(NewClient(server.URL), cache, "user-1", 50*time.Millisecond, 24*time.Hour, Callbacks{})

	g.observeForceLogout(time.Now().UTC().Format(time.RFC3339Nano), seclog.ReasonForceLogout)

	reasons, signouts := server.snapshot()
	assert.Empty(t, reasons)
	assert.Zero(t, signouts)
}

func TestForceLogoutSameValueNoAction(t *testing.T) {
	server := newGuardServer(t)
	g, _ := newSeededGuard(t, server, Callbacks{})

	marker := time.Now().UTC().Format(time.RFC3339Nano)
	g.mu.Lock()
	g.lastForceLogoutAt = marker
	g.mu.Unlock()

	g.observeForceLogout(marker, seclog.ReasonForceLogoutPolling)

	reasons, signouts := server.snapshot()
	assert.Empty(t, reasons)
	assert.Zero(t, signouts)
}

func TestForceLogoutPushAndPollAgree(t *testing.T) {
	// The push channel carries a raw string, the poll channel a parsed
	// timestamp; both normalize to the same value
	now := time.Now().UTC()
	raw := now.Format(time.RFC3339Nano)
	assert.Equal(t, normalizeTimestamp(&now), normalizeRaw(raw))
	assert.Equal(t, "", normalizeTimestamp(nil))
	assert.Equal(t, "", normalizeRaw(""))
}

func TestMaintenanceReducer(t *testing.T) {
	server := newGuardServer(t)

	var seen []bool
	g, _ := newSeededGuard(t, server, Callbacks{
		OnMaintenance: func(enabled bool) { seen = append(seen, enabled) },
	})

	g.observeMaintenance(true)
	g.observeMaintenance(true)
	g.observeMaintenance(false)
	g.observeMaintenance(false)
	g.observeMaintenance(true)

	assert.Equal(t, []bool{true, false, true}, seen)
}

func TestMaintenanceAdminSuppression(t *testing.T) {
	server := newGuardServer(t)

	var seen []bool
	g, _ := newSeededGuard(t, server, Callbacks{
		OnMaintenance: func(enabled bool) { seen = append(seen, enabled) },
	})
	g.mu.Lock()
	g.isAdmin = true
	g.mu.Unlock()

	// Admins keep working while maintenance is on, but hear it end
	g.observeMaintenance(true)
	g.observeMaintenance(false)

	assert.Equal(t, []bool{false}, seen)
}

func TestGuardStartSeedsAndPolls(t *testing.T) {
	server := newGuardServer(t)
	at := time.Now().UTC()
	server.mu.Lock()
	server.status = SessionStatus{Role: "guest", MaintenanceMode: false}
	server.mu.Unlock()

	cache := newTestCache(t)
	logoutDone := make(chan struct{})
	g := NewSessionGuard(NewClient(server.URL), cache, "user-1", 20*time.Millisecond, 24*time.Hour, Callbacks{
		OnForcedLogout: func() { close(logoutDone) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, g.Start(ctx))
	defer g.Stop()

	// Flip the force-logout marker; the poll fallback must pick it up
	server.mu.Lock()
	server.status.ForceLogoutAt = &at
	server.mu.Unlock()

	select {
	case <-logoutDone:
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop never acted on the force-logout marker")
	}

	reasons, signouts := server.snapshot()
	require.NotEmpty(t, reasons)
	assert.Equal(t, seclog.ReasonForceLogoutPolling, reasons[0])
	assert.Equal(t, 1, signouts)
}
