package syncer

import (
	"errors"
	"fmt"
)

// ErrSyncInProgress is returned when a sync is requested while another
// run is still in flight. Runs are never executed concurrently.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrSyncDisabled is returned when a sync is requested but sync_enabled
// is false.
var ErrSyncDisabled = errors.New("sync is disabled in configuration")

// ErrNoCalendars is returned when no calendars are configured for sync.
var ErrNoCalendars = errors.New("no calendars configured for sync")

// ValidationError reports a malformed source event. The event is dropped
// and logged; the run continues.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s: %s", e.Field, e.Reason)
}
