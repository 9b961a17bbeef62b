package security

import (
	"net/http"
	"strings"
)

// UnknownIP is the sentinel for clients whose address could not be determined.
// An unidentifiable client is never locked (fail open).
const UnknownIP = "unknown"

// ExtractClientIP resolves the best-effort client address from proxy headers:
// first segment of X-Forwarded-For, then X-Real-IP, else "unknown".
func ExtractClientIP(header http.Header) string {
	if forwarded := header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	if realIP := header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	return UnknownIP
}
