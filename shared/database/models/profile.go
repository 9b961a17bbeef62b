package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile roles
const (
	RoleAdmin = "admin"
	RoleGroup = "group"
	RoleGuest = "guest"
)

// Profile represents a dashboard account (admin, exhibiting group or guest)
type Profile struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email       string    `json:"email" gorm:"uniqueIndex;not null"`
	Password    string    `json:"-" gorm:"not null"`
	Role        string    `json:"role" gorm:"size:20;not null;default:'guest'"`
	GroupName   string    `json:"group_name" gorm:"size:100"`
	DisplayName string    `json:"display_name" gorm:"size:100"`
	Description string    `json:"description" gorm:"type:text"`
	ImageURL    string    `json:"image_url"`
	CategoryID  *int      `json:"category_id"`

	// ForceLogoutAt is bumped by an administrator to terminate every live
	// session of this account. The session guard watches it for changes.
	ForceLogoutAt *time.Time `json:"force_logout_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

// IsAdmin reports whether the profile holds the administrator role
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
