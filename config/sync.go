package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SyncDirectionICloudToGoogle is the only supported sync direction.
const SyncDirectionICloudToGoogle = "icloud_to_google"

// ConfigError reports malformed sync settings. It is fatal to the
// invocation that hits it and is never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// SyncSettings are the runtime sync settings, persisted as JSON in the
// data directory and mutable through the configure_sync tool.
type SyncSettings struct {
	SyncEnabled               bool     `json:"sync_enabled"`
	SyncIntervalHours         int      `json:"sync_interval_hours"`
	CalendarsToSync           []string `json:"calendars_to_sync"`
	GoogleCalendarID          string   `json:"google_calendar_id"`
	DaysBack                  int      `json:"days_back"`
	DaysForward               int      `json:"days_forward"`
	GoogleCalendarIntegration bool     `json:"google_calendar_integration"`
	SyncDirection             string   `json:"sync_direction"`
	DeleteRemovedEvents       bool     `json:"delete_removed_events"`
	UpdateExistingEvents      bool     `json:"update_existing_events"`
	AutoStartSync             bool     `json:"auto_start_sync"`

	// IdentityWindowDays controls how far a same-titled event may move in
	// time and still be treated as the same logical appointment.
	IdentityWindowDays int `json:"identity_window_days"`
}

// DefaultSettings returns the settings used on first run.
func DefaultSettings() *SyncSettings {
	return &SyncSettings{
		SyncEnabled:               false,
		SyncIntervalHours:         4,
		CalendarsToSync:           []string{},
		GoogleCalendarID:          "primary",
		DaysBack:                  7,
		DaysForward:               30,
		GoogleCalendarIntegration: true,
		SyncDirection:             SyncDirectionICloudToGoogle,
		DeleteRemovedEvents:       false,
		UpdateExistingEvents:      true,
		AutoStartSync:             false,
		IdentityWindowDays:        3,
	}
}

// Normalize fills zero values with defaults so settings files written by
// older versions keep working.
func (s *SyncSettings) Normalize() {
	if s.SyncIntervalHours == 0 {
		s.SyncIntervalHours = 4
	}
	if s.CalendarsToSync == nil {
		s.CalendarsToSync = []string{}
	}
	if s.GoogleCalendarID == "" {
		s.GoogleCalendarID = "primary"
	}
	if s.SyncDirection == "" {
		s.SyncDirection = SyncDirectionICloudToGoogle
	}
	if s.IdentityWindowDays == 0 {
		s.IdentityWindowDays = 3
	}
}

// Validate checks invariants the reconciliation engine relies on.
func (s *SyncSettings) Validate() error {
	if s.SyncIntervalHours <= 0 {
		return &ConfigError{Field: "sync_interval_hours", Reason: "must be greater than zero"}
	}
	if s.DaysBack < 0 {
		return &ConfigError{Field: "days_back", Reason: "must not be negative"}
	}
	if s.DaysForward < 0 {
		return &ConfigError{Field: "days_forward", Reason: "must not be negative"}
	}
	if s.GoogleCalendarID == "" {
		return &ConfigError{Field: "google_calendar_id", Reason: "must not be empty"}
	}
	if s.SyncDirection != SyncDirectionICloudToGoogle {
		return &ConfigError{Field: "sync_direction", Reason: fmt.Sprintf("unsupported direction %q", s.SyncDirection)}
	}
	if s.IdentityWindowDays < 0 {
		return &ConfigError{Field: "identity_window_days", Reason: "must not be negative"}
	}
	return nil
}

// SyncsCalendar reports whether the named calendar is selected for sync.
func (s *SyncSettings) SyncsCalendar(name string) bool {
	for _, c := range s.CalendarsToSync {
		if c == name {
			return true
		}
	}
	return false
}

// SettingsPatch is a partial update applied by configure_sync. Nil fields
// are left unchanged.
type SettingsPatch struct {
	SyncEnabled               *bool     `json:"sync_enabled,omitempty"`
	SyncIntervalHours         *int      `json:"sync_interval_hours,omitempty"`
	CalendarsToSync           *[]string `json:"calendars_to_sync,omitempty"`
	GoogleCalendarID          *string   `json:"google_calendar_id,omitempty"`
	DaysBack                  *int      `json:"days_back,omitempty"`
	DaysForward               *int      `json:"days_forward,omitempty"`
	GoogleCalendarIntegration *bool     `json:"google_calendar_integration,omitempty"`
	SyncDirection             *string   `json:"sync_direction,omitempty"`
	DeleteRemovedEvents       *bool     `json:"delete_removed_events,omitempty"`
	UpdateExistingEvents      *bool     `json:"update_existing_events,omitempty"`
	AutoStartSync             *bool     `json:"auto_start_sync,omitempty"`
	IdentityWindowDays        *int      `json:"identity_window_days,omitempty"`
}

// Apply merges the patch into the settings.
func (s *SyncSettings) Apply(p SettingsPatch) {
	if p.SyncEnabled != nil {
		s.SyncEnabled = *p.SyncEnabled
	}
	if p.SyncIntervalHours != nil {
		s.SyncIntervalHours = *p.SyncIntervalHours
	}
	if p.CalendarsToSync != nil {
		s.CalendarsToSync = *p.CalendarsToSync
	}
	if p.GoogleCalendarID != nil {
		s.GoogleCalendarID = *p.GoogleCalendarID
	}
	if p.DaysBack != nil {
		s.DaysBack = *p.DaysBack
	}
	if p.DaysForward != nil {
		s.DaysForward = *p.DaysForward
	}
	if p.GoogleCalendarIntegration != nil {
		s.GoogleCalendarIntegration = *p.GoogleCalendarIntegration
	}
	if p.SyncDirection != nil {
		s.SyncDirection = *p.SyncDirection
	}
	if p.DeleteRemovedEvents != nil {
		s.DeleteRemovedEvents = *p.DeleteRemovedEvents
	}
	if p.UpdateExistingEvents != nil {
		s.UpdateExistingEvents = *p.UpdateExistingEvents
	}
	if p.AutoStartSync != nil {
		s.AutoStartSync = *p.AutoStartSync
	}
	if p.IdentityWindowDays != nil {
		s.IdentityWindowDays = *p.IdentityWindowDays
	}
}

// LoadSettings reads sync settings from path. On first run the file does
// not exist yet; defaults are written and returned.
func LoadSettings(path string) (*SyncSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s := DefaultSettings()
			if err := SaveSettings(path, s); err != nil {
				return nil, err
			}
			return s, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var s SyncSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	s.Normalize()
	return &s, nil
}

// SaveSettings writes settings atomically: temp file in the same
// directory, then rename over the target.
func SaveSettings(path string, s *SyncSettings) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp settings: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod settings: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
