package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"expoboard-backend/dashboard-service/handlers"
	"expoboard-backend/dashboard-service/security"
	"expoboard-backend/shared/config"
	seclog "expoboard-backend/shared/database/models/security"
)

func newGateRouter(t *testing.T) (*gin.Engine, *security.LogStore, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.Exec(`CREATE TABLE security_logs (
		id text PRIMARY KEY,
		user_id text,
		ip_address text NOT NULL,
		user_agent text,
		reason text NOT NULL,
		created_at datetime,
		resolved_at datetime
	)`).Error
	require.NoError(t, err)

	store := security.NewLogStore(db)
	evaluator := security.NewEvaluator(store, 24*time.Hour)

	router := gin.New()
	router.Use(EdgeGate(store, evaluator))
	router.GET("/locked", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"locked": true}) })
	router.GET("/shops", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	return router, store, db
}

func doRequest(router *gin.Engine, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTrapAccessBansAndRedirects(t *testing.T) {
	router, _, db := newGateRouter(t)

	w := doRequest(router, "/.env", "1.2.3.4")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LockedPath, w.Header().Get("Location"))

	var entries []seclog.SecurityLog
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "1.2.3.4", entries[0].IPAddress)
	assert.Contains(t, entries[0].Reason, "/.env")
	assert.Nil(t, entries[0].ResolvedAt)
	assert.Nil(t, entries[0].UserID)
}

func TestBannedIPIsRedirectedEverywhere(t *testing.T) {
	router, _, _ := newGateRouter(t)

	doRequest(router, "/.env", "1.2.3.4")

	w := doRequest(router, "/shops", "1.2.3.4")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LockedPath, w.Header().Get("Location"))
}

func TestUnlockScenario(t *testing.T) {
	router, store, db := newGateRouter(t)

	// Trap hit bans the IP
	doRequest(router, "/.env", "1.2.3.4")
	assert.Equal(t, http.StatusFound, doRequest(router, "/shops", "1.2.3.4").Code)

	// Resolving lifts the ban
	count, err := store.ResolveAllForIP("1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	var entry seclog.SecurityLog
	require.NoError(t, db.First(&entry, "ip_address = ?", "1.2.3.4").Error)
	assert.NotNil(t, entry.ResolvedAt)

	assert.Equal(t, http.StatusOK, doRequest(router, "/shops", "1.2.3.4").Code)
}

func TestOtherIPsUnaffected(t *testing.T) {
	router, _, _ := newGateRouter(t)

	doRequest(router, "/.env", "1.2.3.4")

	w := doRequest(router, "/shops", "5.6.7.8")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownIPTrapDoesNotBan(t *testing.T) {
	router, _, db := newGateRouter(t)

	// No forwarded headers: client cannot be identified, so no ban is
	// recorded and the request falls through to normal handling
	w := doRequest(router, "/shops", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, "/.env", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var count int64
	require.NoError(t, db.Model(&seclog.SecurityLog{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestLockedSurfaceExemptFromGate(t *testing.T) {
	router, _, _ := newGateRouter(t)

	doRequest(router, "/.env", "1.2.3.4")

	// The locked surface itself stays reachable for banned clients
	w := doRequest(router, "/locked", "1.2.3.4")
	assert.Equal(t, http.StatusOK, w.Code)
}

// Mirrors the route wiring in dashboard-service/main.go: the gate in front
// of the locked surface and the security server actions.
func newServiceRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.Exec(`CREATE TABLE security_logs (
		id text PRIMARY KEY,
		user_id text,
		ip_address text NOT NULL,
		user_agent text,
		reason text NOT NULL,
		created_at datetime,
		resolved_at datetime
	)`).Error
	require.NoError(t, err)

	previous := config.GetConfig().AdminSecurityKey
	config.GetConfig().AdminSecurityKey = "correct-key"
	t.Cleanup(func() { config.GetConfig().AdminSecurityKey = previous })

	securityHandler := handlers.NewSecurityHandler(db)

	router := gin.New()
	router.Use(EdgeGate(securityHandler.Store(), securityHandler.Evaluator()))
	router.GET("/locked", securityHandler.CheckIPLockout)
	router.POST("/api/security/verify-key", securityHandler.VerifyKey)
	router.POST("/api/security/unlock", securityHandler.Unlock)
	router.POST("/api/security/events", securityHandler.LogEvent)
	router.GET("/shops", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	return router, db
}

func postFromIP(router *gin.Engine, path, body, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestBannedIPCanUnlockOverHTTP(t *testing.T) {
	router, db := newServiceRouter(t)

	// Trap hit bans the IP; ordinary routes are redirected
	doRequest(router, "/.env", "1.2.3.4")
	assert.Equal(t, http.StatusFound, doRequest(router, "/shops", "1.2.3.4").Code)

	// The security actions stay reachable for the banned client
	w := postFromIP(router, "/api/security/verify-key", `{"key":"correct-key"}`, "1.2.3.4")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)

	w = postFromIP(router, "/api/security/unlock", `{"key":"correct-key"}`, "1.2.3.4")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	var entry seclog.SecurityLog
	require.NoError(t, db.First(&entry, "ip_address = ?", "1.2.3.4").Error)
	assert.NotNil(t, entry.ResolvedAt)

	// The lock is gone for ordinary routes
	assert.Equal(t, http.StatusOK, doRequest(router, "/shops", "1.2.3.4").Code)
}

func TestBannedIPUnlockWithWrongKeyStaysLocked(t *testing.T) {
	router, db := newServiceRouter(t)

	doRequest(router, "/.env", "1.2.3.4")

	// The unlock route is reachable, but the wrong key changes nothing
	w := postFromIP(router, "/api/security/unlock", `{"key":"wrong-key"}`, "1.2.3.4")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	var entry seclog.SecurityLog
	require.NoError(t, db.First(&entry, "ip_address = ?", "1.2.3.4").Error)
	assert.Nil(t, entry.ResolvedAt)

	assert.Equal(t, http.StatusFound, doRequest(router, "/shops", "1.2.3.4").Code)
}

func TestGateFailsOpenOnStoreError(t *testing.T) {
	router, _, db := newGateRouter(t)

	doRequest(router, "/.env", "1.2.3.4")

	// With the ledger gone the lockout check errors and the gate lets
	// the request through
	require.NoError(t, db.Exec("DROP TABLE security_logs").Error)

	w := doRequest(router, "/shops", "1.2.3.4")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTrapMatchingIsPrefixOrSubstring(t *testing.T) {
	router, _, db := newGateRouter(t)

	w := doRequest(router, "/wp-admin/setup.php", "9.9.9.9")
	assert.Equal(t, http.StatusFound, w.Code)

	// Substring containment also triggers
	w = doRequest(router, "/mirror/.env/backup", "9.9.9.10")
	assert.Equal(t, http.StatusFound, w.Code)

	var count int64
	require.NoError(t, db.Model(&seclog.SecurityLog{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
