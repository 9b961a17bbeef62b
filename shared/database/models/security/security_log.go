package security

import (
	"time"

	"github.com/google/uuid"
)

// Reason prefixes used by the defense pipeline
const (
	ReasonForceLogout        = "Force Logout Triggered"
	ReasonForceLogoutPolling = "Force Logout Triggered (Polling)"
	ReasonTrapAccessPrefix   = "AUTONOMOUS DEFENSE: Trap access"
)

// SecurityLog is one entry of the append-only per-IP security ledger.
// Entries are immutable facts; the only permitted mutation is the single
// resolve transition (setting ResolvedAt). Entries are never deleted.
type SecurityLog struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    *uuid.UUID `json:"user_id,omitempty" gorm:"type:uuid;index"` // nil for system-detected events
	IPAddress string     `json:"ip_address" gorm:"size:50;not null;index"`
	UserAgent string     `json:"user_agent" gorm:"type:text"`
	Reason    string     `json:"reason" gorm:"type:text;not null"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime;index"`

	// ResolvedAt is nil while the entry contributes to an active lock.
	ResolvedAt *time.Time `json:"resolved_at" gorm:"index"`
}

// TableName returns the table name for SecurityLog
func (SecurityLog) TableName() string {
	return "security_logs"
}

// IsResolved reports whether the entry has been manually cleared
func (l *SecurityLog) IsResolved() bool {
	return l.ResolvedAt != nil
}
