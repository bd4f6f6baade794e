package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/icalsync/internal/domain"
)

// Remote is the target calendar collaborator. Calls may fail with
// AuthError, RateLimitError or NetworkError from the google client.
type Remote interface {
	CreateEvent(ctx context.Context, calendarID string, ev domain.CanonicalEvent) (string, error)
	UpdateEvent(ctx context.Context, calendarID, remoteID string, ev domain.CanonicalEvent) error
	DeleteEvent(ctx context.Context, calendarID, remoteID string) error
}

// RecordStore is the state store as seen by the executor.
type RecordStore interface {
	RecordIndex
	Put(rec domain.SyncRecord) error
	Delete(key string) error
}

// temporary is implemented by remote errors that are worth retrying
// within a run (rate limits, transient network failures).
type temporary interface {
	Temporary() bool
}

// Executor consumes a sync plan and applies it to the remote calendar,
// recording each success in the state store. Per-entry remote failures
// are logged and counted but do not abort the rest of the plan: the
// failed entry's record stays untouched, so the next reconciliation
// reclassifies it the same way.
type Executor struct {
	remote   Remote
	log      *zap.Logger
	attempts int
	backoff  time.Duration
	sleep    func(time.Duration)
	now      func() time.Time
}

// NewExecutor creates an executor with up to three attempts per remote
// call and a doubling backoff starting at one second.
func NewExecutor(remote Remote, log *zap.Logger) *Executor {
	return &Executor{
		remote:   remote,
		log:      log,
		attempts: 3,
		backoff:  time.Second,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// Execute applies the plan. In dry-run mode it only logs the intended
// actions and mutates neither the remote calendar nor the state store.
// State store failures are fatal and abort the run; the report reflects
// what finished before the failure.
func (x *Executor) Execute(ctx context.Context, plan *domain.SyncPlan, store RecordStore, calendarID string, dryRun bool) (*domain.Report, error) {
	report := &domain.Report{
		DryRun:    dryRun,
		StartedAt: x.now(),
	}
	defer func() { report.FinishedAt = x.now() }()

	for _, entry := range plan.Entries {
		if entry.Action == domain.ActionSkip {
			report.Skipped++
			continue
		}

		if dryRun {
			x.log.Info("dry-run: would apply action",
				zap.String("action", string(entry.Action)),
				zap.String("identity_key", entry.IdentityKey()),
				zap.String("reason", entry.Reason))
			x.count(report, entry.Action)
			continue
		}

		if err := x.apply(ctx, entry, store, calendarID); err != nil {
			if isStoreError(err) {
				return report, err
			}
			report.Failed++
			report.Failures = append(report.Failures,
				fmt.Sprintf("%s %s: %v", entry.Action, entry.IdentityKey(), err))
			x.log.Warn("plan entry failed, will retry next pass",
				zap.String("action", string(entry.Action)),
				zap.String("identity_key", entry.IdentityKey()),
				zap.Error(err))
			continue
		}
		x.count(report, entry.Action)
	}

	return report, nil
}

func (x *Executor) count(report *domain.Report, action domain.Action) {
	switch action {
	case domain.ActionCreate:
		report.Created++
	case domain.ActionUpdate:
		report.Updated++
	case domain.ActionDelete:
		report.Deleted++
	}
}

// storeError marks errors originating from the state store so Execute can
// distinguish them from remote failures.
type storeError struct {
	err error
}

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

func isStoreError(err error) bool {
	var se *storeError
	return errors.As(err, &se)
}

func (x *Executor) apply(ctx context.Context, entry domain.PlanEntry, store RecordStore, calendarID string) error {
	switch entry.Action {
	case domain.ActionCreate:
		var remoteID string
		err := x.withRetry(ctx, func() error {
			var err error
			remoteID, err = x.remote.CreateEvent(ctx, calendarID, *entry.Event)
			return err
		})
		if err != nil {
			return err
		}
		if err := store.Put(x.record(*entry.Event, remoteID)); err != nil {
			return &storeError{err: err}
		}
		x.log.Info("event created",
			zap.String("identity_key", entry.Event.IdentityKey),
			zap.String("remote_id", remoteID))
		return nil

	case domain.ActionUpdate:
		err := x.withRetry(ctx, func() error {
			return x.remote.UpdateEvent(ctx, calendarID, entry.Record.RemoteEventID, *entry.Event)
		})
		if err != nil {
			return err
		}
		if err := store.Put(x.record(*entry.Event, entry.Record.RemoteEventID)); err != nil {
			return &storeError{err: err}
		}
		x.log.Info("event updated",
			zap.String("identity_key", entry.Event.IdentityKey),
			zap.String("remote_id", entry.Record.RemoteEventID))
		return nil

	case domain.ActionDelete:
		err := x.withRetry(ctx, func() error {
			return x.remote.DeleteEvent(ctx, calendarID, entry.Record.RemoteEventID)
		})
		if err != nil {
			return err
		}
		if err := store.Delete(entry.Record.IdentityKey); err != nil {
			return &storeError{err: err}
		}
		x.log.Info("event deleted",
			zap.String("identity_key", entry.Record.IdentityKey),
			zap.String("remote_id", entry.Record.RemoteEventID))
		return nil

	default:
		return fmt.Errorf("unknown action %q", entry.Action)
	}
}

func (x *Executor) record(ev domain.CanonicalEvent, remoteID string) domain.SyncRecord {
	return domain.SyncRecord{
		IdentityKey:    ev.IdentityKey,
		RemoteEventID:  remoteID,
		ContentHash:    ev.ContentHash,
		LastSyncedAt:   x.now(),
		SourceCalendar: ev.SourceCalendar,
		Title:          ev.Title,
		Start:          ev.Start,
	}
}

// withRetry runs fn up to x.attempts times, backing off between attempts.
// Only errors marked temporary (rate limit, transient network) are
// retried; auth failures surface immediately.
func (x *Executor) withRetry(ctx context.Context, fn func() error) error {
	delay := x.backoff
	var err error
	for attempt := 1; attempt <= x.attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var t temporary
		if !errors.As(err, &t) || !t.Temporary() {
			return err
		}
		if attempt == x.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		x.sleep(delay)
		delay *= 2
	}
	return err
}
