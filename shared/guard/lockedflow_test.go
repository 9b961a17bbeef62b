package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flowServer struct {
	locked      atomic.Bool
	lockoutEnd  atomic.Int64
	unlockOK    atomic.Bool
	unlockCalls atomic.Int64
	*httptest.Server
}

func newFlowServer(t *testing.T) *flowServer {
	t.Helper()
	fs := &flowServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/locked", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{"locked": fs.locked.Load()}
		if fs.locked.Load() {
			end := fs.lockoutEnd.Load()
			resp["lockout_end"] = end
			resp["remaining_ms"] = end - time.Now().UnixMilli()
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/security/unlock", func(w http.ResponseWriter, r *http.Request) {
		fs.unlockCalls.Add(1)
		if fs.unlockOK.Load() {
			fs.locked.Store(false)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "Invalid Security Key"})
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func TestLockedFlowReleasesWhenNotLocked(t *testing.T) {
	server := newFlowServer(t)
	cache := newTestCache(t)

	var states []FlowState
	flow := NewLockedFlow(NewClient(server.URL), cache, FlowCallbacks{
		OnStateChange: func(s FlowState) { states = append(states, s) },
	})

	require.NoError(t, flow.Run(context.Background()))
	assert.Equal(t, StateReleased, flow.State())
	assert.Equal(t, []FlowState{StateReleased}, states)
}

func TestLockedFlowCountdownReleasesLocally(t *testing.T) {
	server := newFlowServer(t)
	server.locked.Store(true)
	server.lockoutEnd.Store(time.Now().Add(1200 * time.Millisecond).UnixMilli())
	cache := newTestCache(t)

	ticks := make(chan time.Duration, 16)
	flow := NewLockedFlow(NewClient(server.URL), cache, FlowCallbacks{
		OnTick: func(remaining time.Duration) { ticks <- remaining },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, flow.Run(ctx))

	assert.Equal(t, StateReleased, flow.State())
	// No unlock round trip happens on local expiry
	assert.Zero(t, server.unlockCalls.Load())
	// The cached expiry is gone after release
	_, ok := cache.Get()
	assert.False(t, ok)
}

func TestLockedFlowCachesServerLockout(t *testing.T) {
	server := newFlowServer(t)
	end := time.Now().Add(time.Hour)
	server.locked.Store(true)
	server.lockoutEnd.Store(end.UnixMilli())
	cache := newTestCache(t)

	flow := NewLockedFlow(NewClient(server.URL), cache, FlowCallbacks{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- flow.Run(ctx) }()

	require.Eventually(t, func() bool { return flow.State() == StateLocked }, time.Second, 10*time.Millisecond)
	assert.Equal(t, end.UnixMilli(), flow.LockoutEnd().UnixMilli())

	until, ok := cache.Get()
	require.True(t, ok)
	assert.Equal(t, end.UnixMilli(), until.UnixMilli())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestLockedFlowFallsBackToCache(t *testing.T) {
	server := newFlowServer(t)
	cache := newTestCache(t)
	until := time.Now().Add(time.Hour)
	require.NoError(t, cache.Set(until))

	flow := NewLockedFlow(NewClient(server.URL), cache, FlowCallbacks{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- flow.Run(ctx) }()

	require.Eventually(t, func() bool { return flow.State() == StateLocked }, time.Second, 10*time.Millisecond)
	assert.Equal(t, until.UnixMilli(), flow.LockoutEnd().UnixMilli())

	cancel()
	<-done
}

func TestLockedFlowIgnoresExpiredCache(t *testing.T) {
	server := newFlowServer(t)
	cache := newTestCache(t)
	require.NoError(t, cache.Set(time.Now().Add(-time.Hour)))

	flow := NewLockedFlow(NewClient(server.URL), cache, FlowCallbacks{})
	require.NoError(t, flow.Run(context.Background()))
	assert.Equal(t, StateReleased, flow.State())
}

func TestSubmitKeySuccessReleases(t *testing.T) {
	server := newFlowServer(t)
	server.locked.Store(true)
	server.unlockOK.Store(true)
	cache := newTestCache(t)
	require.NoError(t, cache.Set(time.Now().Add(time.Hour)))

	var states []FlowState
	flow := NewLockedFlow(NewClient(server.URL), cache, FlowCallbacks{
		OnStateChange: func(s FlowState) { states = append(states, s) },
	})

	require.NoError(t, flow.SubmitKey("correct-key"))
	assert.Equal(t, StateReleased, flow.State())
	assert.Equal(t, []FlowState{StateUnlocking, StateReleased}, states)
	assert.Equal(t, int64(1), server.unlockCalls.Load())

	_, ok := cache.Get()
	assert.False(t, ok)
}

func TestSubmitKeyRejectionStaysLocked(t *testing.T) {
	server := newFlowServer(t)
	server.locked.Store(true)
	cache := newTestCache(t)
	require.NoError(t, cache.Set(time.Now().Add(time.Hour)))

	flow := NewLockedFlow(NewClient(server.URL), cache, FlowCallbacks{})

	err := flow.SubmitKey("wrong-key")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Equal(t, StateLocked, flow.State())

	// A failed attempt leaves the cached lockout alone
	_, ok := cache.Get()
	assert.True(t, ok)
}
