package models

import "time"

// SettingsID keys the singleton settings record.
const SettingsID = "global"

// Settings bounds and defaults.
const (
	MinRetentionDays         = 1
	MaxRetentionDays         = 3650
	DefaultRetentionDays     = 90
	DefaultMaxExportSize     = 10000
	DefaultSettingsUpdatedBy = "api-user"
)

// Settings is the persisted singleton. It is always written whole.
type Settings struct {
	ID                  string    `json:"id"`
	RetentionPeriodDays int       `json:"retentionPeriodDays"`
	UpdatedAt           time.Time `json:"updatedAt"`
	UpdatedBy           string    `json:"updatedBy"`
}

// SettingsView is the settings API body. MaxExportSize is process
// configuration: it is echoed back but never stored.
type SettingsView struct {
	RetentionPeriodDays int `json:"retentionPeriodDays"`
	MaxExportSize       int `json:"maxExportSize"`
}

// Validate enforces retentionPeriodDays in [1, 3650] and maxExportSize >= 1.
func (v SettingsView) Validate() error {
	fields := map[string]string{}
	if v.RetentionPeriodDays < MinRetentionDays || v.RetentionPeriodDays > MaxRetentionDays {
		fields["retentionPeriodDays"] = "Retention period must be between 1 and 3650 days"
	}
	if v.MaxExportSize < 1 {
		fields["maxExportSize"] = "Max export size must be at least 1"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
