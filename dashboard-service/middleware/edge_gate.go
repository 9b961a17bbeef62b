package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"expoboard-backend/dashboard-service/security"
)

// Trap paths (honeypot) - accessing any of these bans the IP.
// Matched as prefix or substring; no legitimate request ever names them.
var TrapPaths = []string{
	// Generic high-risk probes
	"/wp-admin",
	"/phpmyadmin",
	"/.env",

	// Project-specific sensitive files (never served over HTTP)
	"/.env.local",
	"/.git",
	"/go.mod",
	"/go.sum",
	"/Dockerfile",
	"/docker-compose.yml",
	"/shared/config",
}

// Paths exempt from the lockout check: the locked surface and the security
// server actions it needs (unlock must stay reachable for locked clients;
// key verification inside the handlers is the guard there), plus static
// and framework assets.
var gateSkipPrefixes = []string{
	"/locked",
	"/api/security",
	"/api/auth/signout",
	"/static",
	"/favicon.ico",
	"/swagger",
	"/ws",
}

// LockedPath is where banned clients are sent
const LockedPath = "/locked"

// EdgeGate runs before every handler: it bans identified clients probing
// trap paths and redirects clients with an active lockout. Ledger errors
// never take the site down - the gate logs and lets the request through.
func EdgeGate(store *security.LogStore, evaluator *security.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		ip := security.ExtractClientIP(c.Request.Header)

		// Honeypot trigger: short-circuits the lockout check below
		if isTrapPath(path) && ip != security.UnknownIP {
			log.Printf("⚠️ [AUTONOMOUS DEFENSE] Trap triggered by %s on %s", ip, path)

			_, err := store.Append(security.LogEntry{
				IPAddress: ip,
				UserAgent: userAgentOrUnknown(c.Request),
				Reason:    security.TrapReason(path),
			})
			if err != nil {
				// Best effort: the redirect still happens
				log.Printf("❌ Failed to record trap access: %v", err)
			}

			c.Redirect(http.StatusFound, LockedPath)
			c.Abort()
			return
		}

		// Lockout check
		if ip != security.UnknownIP && !isGateExempt(path) {
			status, err := evaluator.IsLocked(ip, time.Now().UTC())
			if err != nil {
				// Ledger unreachable: fail open rather than block the site
				log.Printf("❌ Lockout check failed for %s: %v", ip, err)
			} else if status.Locked {
				c.Redirect(http.StatusFound, LockedPath)
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

func isTrapPath(path string) bool {
	for _, trap := range TrapPaths {
		if strings.HasPrefix(path, trap) || strings.Contains(path, trap) {
			return true
		}
	}
	return false
}

func isGateExempt(path string) bool {
	for _, prefix := range gateSkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func userAgentOrUnknown(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return "unknown"
}
