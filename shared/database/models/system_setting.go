package models

import "time"

// System setting keys
const (
	SettingMaintenanceMode = "maintenance_mode"
)

// SystemSetting represents a single key/value system flag
type SystemSetting struct {
	Key       string    `json:"key" gorm:"primaryKey;size:100"`
	Value     string    `json:"value" gorm:"size:255;not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for SystemSetting
func (SystemSetting) TableName() string {
	return "system_settings"
}

// BoolValue interprets the setting as a boolean flag
func (s *SystemSetting) BoolValue() bool {
	return s.Value == "true"
}
