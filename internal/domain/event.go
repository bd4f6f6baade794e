package domain

import "time"

// Action is the operation the plan executor performs for one entry.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionSkip   Action = "skip"
)

// Calendar describes a source calendar as reported by iCloud.
type Calendar struct {
	Name    string `json:"name"`
	Account string `json:"account"`
	Path    string `json:"path"`
}

// RawEvent is a source event as returned by the iCloud client, before
// validation. Untyped or partially-filled records never flow past the
// normalizer.
type RawEvent struct {
	UID         string    `json:"uid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Calendar    string    `json:"calendar"`
}

// CanonicalEvent is the single canonical shape every source event is
// converted to. Immutable once constructed for a sync pass.
type CanonicalEvent struct {
	IdentityKey    string    `json:"identity_key"`
	Title          string    `json:"title"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	AllDay         bool      `json:"all_day"`
	Location       string    `json:"location,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	SourceCalendar string    `json:"source_calendar"`
	ContentHash    string    `json:"content_hash"`
}

// SyncRecord is the persisted memory of one logical event that has been
// synced to the remote calendar. Title and Start are kept so the identity
// resolver can match a moved event without parsing the key.
type SyncRecord struct {
	IdentityKey    string    `json:"identity_key"`
	RemoteEventID  string    `json:"remote_event_id"`
	ContentHash    string    `json:"content_hash"`
	LastSyncedAt   time.Time `json:"last_synced_at"`
	SourceCalendar string    `json:"source_calendar"`
	Title          string    `json:"title"`
	Start          time.Time `json:"start"`
}

// PlanEntry is one decided action within a sync plan. Event is nil for
// delete entries (the event is gone from the source); Record is nil for
// create entries (nothing was synced before).
type PlanEntry struct {
	Action Action          `json:"action"`
	Event  *CanonicalEvent `json:"event,omitempty"`
	Record *SyncRecord     `json:"record,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// IdentityKey returns the identity key of the entry regardless of which
// side (event or record) carries it.
func (e PlanEntry) IdentityKey() string {
	if e.Event != nil {
		return e.Event.IdentityKey
	}
	if e.Record != nil {
		return e.Record.IdentityKey
	}
	return ""
}

// SyncPlan is the ordered outcome of one reconciliation pass:
// creates first, then updates, then deletes, then skips.
type SyncPlan struct {
	Entries []PlanEntry `json:"entries"`
}

// Count returns the number of entries with the given action.
func (p *SyncPlan) Count(action Action) int {
	n := 0
	for _, e := range p.Entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// Report summarizes one executed (or dry-run) sync pass.
type Report struct {
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Deleted    int       `json:"deleted"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Failures   []string  `json:"failures,omitempty"`
}
