package security

import (
	"fmt"

	seclog "expoboard-backend/shared/database/models/security"
)

// TrapReason builds the ledger reason string for a honeypot hit
func TrapReason(path string) string {
	return fmt.Sprintf("%s (%s)", seclog.ReasonTrapAccessPrefix, path)
}
