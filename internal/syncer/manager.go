package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/icalsync/config"
	"github.com/tazhate/icalsync/internal/domain"
	"github.com/tazhate/icalsync/internal/storage"
)

// Lifecycle is the state of the process-scoped sync context.
type Lifecycle string

const (
	StateUninitialized Lifecycle = "uninitialized"
	StateRunning       Lifecycle = "running"
	StateStopped       Lifecycle = "stopped"
)

// Source is the local calendar collaborator.
type Source interface {
	ListCalendars(ctx context.Context) ([]domain.Calendar, error)
	ListEvents(ctx context.Context, calendars []string, from, to time.Time) ([]domain.RawEvent, error)
}

// Store is the full state store contract used by the manager.
type Store interface {
	RecordStore
	Count() int
	Reset() error
}

// SchedulerControl abstracts the cron scheduler so the manager can be
// tested without timers.
type SchedulerControl interface {
	Start(intervalHours int, job func()) error
	Stop()
	Running() bool
	NextRun() time.Time
}

// Deps are the collaborators a Manager is built from.
type Deps struct {
	SettingsPath string
	Settings     *config.SyncSettings
	Store        Store
	Source       Source
	Remote       Remote
	Scheduler    SchedulerControl
	History      *storage.History // optional
	Location     *time.Location
	Logger       *zap.Logger
}

// Manager is the process-scoped sync context. It owns the runtime
// settings, serializes sync runs (a manual request during a scheduled
// run is rejected, never run concurrently) and drives the scheduler.
type Manager struct {
	mu sync.Mutex

	lifecycle    Lifecycle
	settings     *config.SyncSettings
	settingsPath string

	store    Store
	source   Source
	remote   Remote
	executor *Executor
	sched    SchedulerControl
	history  *storage.History
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time

	syncing      bool
	lastReport   *domain.Report
	lastSyncTime *time.Time
}

// NewManager creates the sync manager in the uninitialized lifecycle
// state. The scheduler is not started until StartScheduler.
func NewManager(d Deps) *Manager {
	m := &Manager{
		lifecycle:    StateUninitialized,
		settings:     d.Settings,
		settingsPath: d.SettingsPath,
		store:        d.Store,
		source:       d.Source,
		remote:       d.Remote,
		executor:     NewExecutor(d.Remote, d.Logger),
		sched:        d.Scheduler,
		history:      d.History,
		loc:          d.Location,
		log:          d.Logger,
		now:          time.Now,
	}
	if m.loc == nil {
		m.loc = time.UTC
	}

	if m.history != nil {
		if last, err := m.history.LastRun(); err == nil && last != nil {
			t := last.FinishedAt
			m.lastSyncTime = &t
		}
	}

	return m
}

// Sync runs one sync pass. dryRun produces and logs the plan without
// mutating the remote calendar or the state store. Only one pass runs at
// a time; a second request while one is in flight fails with
// ErrSyncInProgress.
func (m *Manager) Sync(ctx context.Context, dryRun bool) (*domain.Report, error) {
	m.mu.Lock()
	if m.syncing {
		m.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	m.syncing = true
	settings := *m.settings
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.syncing = false
		m.mu.Unlock()
	}()

	if !settings.SyncEnabled {
		return nil, ErrSyncDisabled
	}
	if len(settings.CalendarsToSync) == 0 {
		return nil, ErrNoCalendars
	}
	if !settings.GoogleCalendarIntegration && !dryRun {
		return nil, errors.New("google calendar integration is disabled in configuration")
	}

	m.log.Info("starting sync",
		zap.Bool("dry_run", dryRun),
		zap.Strings("calendars", settings.CalendarsToSync))

	now := m.now()
	from := now.AddDate(0, 0, -settings.DaysBack)
	to := now.AddDate(0, 0, settings.DaysForward)

	raw, err := m.source.ListEvents(ctx, settings.CalendarsToSync, from, to)
	if err != nil {
		m.recordRun(nil, err)
		return nil, fmt.Errorf("list source events: %w", err)
	}

	normalizer := NewNormalizer(m.loc)
	events := make([]domain.CanonicalEvent, 0, len(raw))
	for _, r := range raw {
		ev, err := normalizer.Normalize(r)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				m.log.Warn("dropping invalid source event",
					zap.String("title", r.Title),
					zap.String("calendar", r.Calendar),
					zap.Error(err))
				continue
			}
			return nil, err
		}
		events = append(events, ev)
	}

	engine := NewEngine(NewResolver(settings.IdentityWindowDays), m.log)
	plan, err := engine.Reconcile(events, m.store, &settings)
	if err != nil {
		m.recordRun(nil, err)
		return nil, err
	}

	m.log.Info("reconciliation plan ready",
		zap.Int("create", plan.Count(domain.ActionCreate)),
		zap.Int("update", plan.Count(domain.ActionUpdate)),
		zap.Int("delete", plan.Count(domain.ActionDelete)),
		zap.Int("skip", plan.Count(domain.ActionSkip)))

	report, execErr := m.executor.Execute(ctx, plan, m.store, settings.GoogleCalendarID, dryRun)

	m.mu.Lock()
	m.lastReport = report
	if !dryRun && execErr == nil {
		t := report.FinishedAt
		m.lastSyncTime = &t
	}
	m.mu.Unlock()

	m.recordRun(report, execErr)

	if execErr != nil {
		return report, execErr
	}
	m.log.Info("sync finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("deleted", report.Deleted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (m *Manager) recordRun(report *domain.Report, runErr error) {
	if m.history == nil {
		return
	}
	if report == nil {
		report = &domain.Report{StartedAt: m.now(), FinishedAt: m.now()}
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if _, err := m.history.RecordRun(report, msg); err != nil {
		m.log.Warn("could not record sync run", zap.Error(err))
	}
}

// StartScheduler begins firing scheduled syncs at the configured
// interval. Starting an already-running scheduler is a no-op.
func (m *Manager) StartScheduler() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sched.Running() {
		return nil
	}
	if err := m.sched.Start(m.settings.SyncIntervalHours, m.scheduledRun); err != nil {
		return err
	}
	m.lifecycle = StateRunning
	return nil
}

// StopScheduler cancels the next scheduled trigger. An in-flight run is
// not interrupted. The scheduler is stopped outside the manager lock so
// a scheduled run that needs the lock to finish can never deadlock a
// stop request.
func (m *Manager) StopScheduler() {
	m.mu.Lock()
	m.lifecycle = StateStopped
	m.mu.Unlock()

	m.sched.Stop()
}

func (m *Manager) scheduledRun() {
	_, err := m.Sync(context.Background(), false)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress):
		m.log.Info("scheduled sync skipped, another run is in flight")
	case errors.Is(err, ErrSyncDisabled), errors.Is(err, ErrNoCalendars):
		m.log.Info("scheduled sync skipped", zap.Error(err))
	default:
		m.log.Error("scheduled sync failed", zap.Error(err))
	}
}

// Configure merges the patch into the settings, validates, persists and
// applies them. A changed interval reschedules a running scheduler; as
// in StopScheduler, the scheduler calls happen outside the manager lock.
func (m *Manager) Configure(patch config.SettingsPatch) (*config.SyncSettings, error) {
	m.mu.Lock()
	updated := *m.settings
	updated.Apply(patch)
	updated.Normalize()
	if err := updated.Validate(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if err := config.SaveSettings(m.settingsPath, &updated); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	intervalChanged := updated.SyncIntervalHours != m.settings.SyncIntervalHours
	m.settings = &updated
	reschedule := intervalChanged && m.sched.Running()
	m.mu.Unlock()

	if reschedule {
		m.sched.Stop()
		if err := m.sched.Start(updated.SyncIntervalHours, m.scheduledRun); err != nil {
			m.mu.Lock()
			m.lifecycle = StateStopped
			m.mu.Unlock()
			return nil, fmt.Errorf("reschedule: %w", err)
		}
	}

	out := updated
	return &out, nil
}

// Settings returns a copy of the current settings.
func (m *Manager) Settings() config.SyncSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.settings
}

// Calendars lists the source calendars.
func (m *Manager) Calendars(ctx context.Context) ([]domain.Calendar, error) {
	return m.source.ListCalendars(ctx)
}

// Events lists raw source events of the named calendars within the
// [now-daysBack, now+daysForward] window.
func (m *Manager) Events(ctx context.Context, calendars []string, daysBack, daysForward int) ([]domain.RawEvent, error) {
	now := m.now()
	return m.source.ListEvents(ctx, calendars, now.AddDate(0, 0, -daysBack), now.AddDate(0, 0, daysForward))
}

// ResetState clears the state store; every source event is treated as
// new on the next sync.
func (m *Manager) ResetState() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.syncing {
		return ErrSyncInProgress
	}
	if err := m.store.Reset(); err != nil {
		return err
	}
	m.lastSyncTime = nil
	m.lastReport = nil
	m.log.Info("sync state reset")
	return nil
}

// Status describes the manager for sync_status.
type Status struct {
	Lifecycle        Lifecycle            `json:"lifecycle"`
	SchedulerRunning bool                 `json:"scheduler_running"`
	SyncInFlight     bool                 `json:"sync_in_flight"`
	SyncedEvents     int                  `json:"synced_events_count"`
	LastSyncTime     *time.Time           `json:"last_sync_time,omitempty"`
	NextSyncTime     *time.Time           `json:"next_sync_time,omitempty"`
	Settings         config.SyncSettings  `json:"config"`
	LastReport       *domain.Report       `json:"last_report,omitempty"`
	RecentRuns       []storage.Run        `json:"recent_runs,omitempty"`
}

// Status returns the current sync status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	st := Status{
		Lifecycle:        m.lifecycle,
		SchedulerRunning: m.sched.Running(),
		SyncInFlight:     m.syncing,
		SyncedEvents:     m.store.Count(),
		LastSyncTime:     m.lastSyncTime,
		Settings:         *m.settings,
		LastReport:       m.lastReport,
	}
	m.mu.Unlock()

	if st.SchedulerRunning {
		if next := m.sched.NextRun(); !next.IsZero() {
			st.NextSyncTime = &next
		}
	}
	if m.history != nil {
		if runs, err := m.history.RecentRuns(5); err == nil {
			st.RecentRuns = runs
		}
	}
	return st
}
