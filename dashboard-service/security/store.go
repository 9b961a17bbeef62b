package security

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"expoboard-backend/shared/database/models/security"
)

// LogEntry carries the caller-supplied fields of a new ledger entry.
// ID and CreatedAt are assigned at insertion.
type LogEntry struct {
	UserID    *uuid.UUID
	IPAddress string
	UserAgent string
	Reason    string
}

// LogStore is the append-only security ledger. It holds the elevated
// database handle so entries can be written without any acting session
// (system-originated bans). Every evaluation re-reads the database; no
// state is cached here.
type LogStore struct {
	db *gorm.DB
}

// NewLogStore creates a log store on the given database handle
func NewLogStore(db *gorm.DB) *LogStore {
	return &LogStore{db: db}
}

// Append durably records a new ledger entry and returns its ID
func (s *LogStore) Append(entry LogEntry) (uuid.UUID, error) {
	row := security.SecurityLog{
		ID:        uuid.New(),
		UserID:    entry.UserID,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		Reason:    entry.Reason,
	}

	if err := s.db.Create(&row).Error; err != nil {
		return uuid.Nil, err
	}

	return row.ID, nil
}

// QueryActiveForIP returns the newest unresolved entry for the IP created at
// or after windowStart, or nil when none exists.
func (s *LogStore) QueryActiveForIP(ip string, windowStart time.Time) (*security.SecurityLog, error) {
	var entry security.SecurityLog

	err := s.db.
		Where("ip_address = ? AND resolved_at IS NULL AND created_at >= ?", ip, windowStart).
		Order("created_at DESC").
		First(&entry).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

// ResolveAllForIP marks every unresolved entry for the IP as resolved and
// returns the number of entries touched. Re-resolving is a no-op, so the
// operation is safe to apply concurrently.
func (s *LogStore) ResolveAllForIP(ip string) (int64, error) {
	result := s.db.Model(&security.SecurityLog{}).
		Where("ip_address = ? AND resolved_at IS NULL", ip).
		Update("resolved_at", time.Now().UTC())

	return result.RowsAffected, result.Error
}
