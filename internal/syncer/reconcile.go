package syncer

import (
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/icalsync/config"
	"github.com/tazhate/icalsync/internal/domain"
)

const (
	reasonUnchanged        = "unchanged"
	reasonUpdatesDisabled  = "updates disabled"
	reasonDeletionDisabled = "deletion disabled"
	reasonNew              = "not synced before"
	reasonChanged          = "content changed"
	reasonRemoved          = "removed from source"
)

// Engine decides, given the current source events and the persisted sync
// records, which action to take for each logical event. Reconcile never
// mutates the state store or the remote calendar; given its inputs it is
// pure, apart from reading the clock for the date window.
type Engine struct {
	resolver *Resolver
	log      *zap.Logger
	now      func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(resolver *Resolver, log *zap.Logger) *Engine {
	return &Engine{
		resolver: resolver,
		log:      log,
		now:      time.Now,
	}
}

// Reconcile compares the current source events against the state store and
// returns the plan of actions, ordered creates, updates, deletes, skips.
// Deletes are ordered last so a crash before them leaves no orphaned
// remote events from a partially-failed create or update.
func (e *Engine) Reconcile(events []domain.CanonicalEvent, index RecordIndex, cfg *config.SyncSettings) (*domain.SyncPlan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := e.now()
	windowStart := now.AddDate(0, 0, -cfg.DaysBack)
	windowEnd := now.AddDate(0, 0, cfg.DaysForward)

	// Resolve identities for the in-scope events. Last write wins when two
	// events collapse onto the same key within one pass.
	current := make(map[string]domain.CanonicalEvent)
	var order []string
	for _, ev := range events {
		if !cfg.SyncsCalendar(ev.SourceCalendar) {
			continue
		}
		if ev.Start.Before(windowStart) || ev.Start.After(windowEnd) {
			continue
		}
		ev.IdentityKey = e.resolver.Resolve(ev, index)
		if _, dup := current[ev.IdentityKey]; dup {
			e.log.Warn("duplicate identity key in source snapshot, last write wins",
				zap.String("identity_key", ev.IdentityKey),
				zap.String("calendar", ev.SourceCalendar))
		} else {
			order = append(order, ev.IdentityKey)
		}
		current[ev.IdentityKey] = ev
	}

	var creates, updates, deletes, skips []domain.PlanEntry

	for _, key := range order {
		ev := current[key]
		rec, ok := index.Get(key)
		switch {
		case !ok:
			creates = append(creates, domain.PlanEntry{
				Action: domain.ActionCreate,
				Event:  eventPtr(ev),
				Reason: reasonNew,
			})
		case rec.ContentHash != ev.ContentHash:
			if cfg.UpdateExistingEvents {
				updates = append(updates, domain.PlanEntry{
					Action: domain.ActionUpdate,
					Event:  eventPtr(ev),
					Record: recordPtr(rec),
					Reason: reasonChanged,
				})
			} else {
				skips = append(skips, domain.PlanEntry{
					Action: domain.ActionSkip,
					Event:  eventPtr(ev),
					Record: recordPtr(rec),
					Reason: reasonUpdatesDisabled,
				})
			}
		default:
			skips = append(skips, domain.PlanEntry{
				Action: domain.ActionSkip,
				Event:  eventPtr(ev),
				Record: recordPtr(rec),
				Reason: reasonUnchanged,
			})
		}
	}

	// Records whose event disappeared from the source snapshot.
	for _, rec := range index.All() {
		if !cfg.SyncsCalendar(rec.SourceCalendar) {
			continue
		}
		if _, ok := current[rec.IdentityKey]; ok {
			continue
		}
		if cfg.DeleteRemovedEvents {
			deletes = append(deletes, domain.PlanEntry{
				Action: domain.ActionDelete,
				Record: recordPtr(rec),
				Reason: reasonRemoved,
			})
		} else {
			skips = append(skips, domain.PlanEntry{
				Action: domain.ActionSkip,
				Record: recordPtr(rec),
				Reason: reasonDeletionDisabled,
			})
		}
	}

	plan := &domain.SyncPlan{}
	plan.Entries = append(plan.Entries, creates...)
	plan.Entries = append(plan.Entries, updates...)
	plan.Entries = append(plan.Entries, deletes...)
	plan.Entries = append(plan.Entries, skips...)
	return plan, nil
}

func eventPtr(ev domain.CanonicalEvent) *domain.CanonicalEvent {
	return &ev
}

func recordPtr(rec domain.SyncRecord) *domain.SyncRecord {
	return &rec
}
