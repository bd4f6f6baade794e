package syncer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tazhate/icalsync/config"
	"github.com/tazhate/icalsync/internal/domain"
)

// fullStore adds the manager-level Store methods to memStore.
type fullStore struct {
	*memStore
	resets int
}

func (s *fullStore) Count() int { return len(s.records) }

func (s *fullStore) Reset() error {
	s.resets++
	s.records = make(map[string]domain.SyncRecord)
	return nil
}

type fakeSource struct {
	calendars []domain.Calendar
	events    []domain.RawEvent
	err       error
	block     chan struct{} // ListEvents waits on this when non-nil
}

func (s *fakeSource) ListCalendars(context.Context) ([]domain.Calendar, error) {
	return s.calendars, s.err
}

func (s *fakeSource) ListEvents(context.Context, []string, time.Time, time.Time) ([]domain.RawEvent, error) {
	if s.block != nil {
		<-s.block
	}
	return s.events, s.err
}

type fakeScheduler struct {
	running  bool
	interval int
	job      func()
	starts   int
	stops    int
}

func (s *fakeScheduler) Start(intervalHours int, job func()) error {
	s.running = true
	s.interval = intervalHours
	s.job = job
	s.starts++
	return nil
}

func (s *fakeScheduler) Stop() {
	s.running = false
	s.stops++
}

func (s *fakeScheduler) Running() bool      { return s.running }
func (s *fakeScheduler) NextRun() time.Time { return time.Time{} }

func enabledSettings() *config.SyncSettings {
	s := config.DefaultSettings()
	s.SyncEnabled = true
	s.CalendarsToSync = []string{"Work"}
	return s
}

func newTestManager(t *testing.T, source Source, remote Remote, store Store, settings *config.SyncSettings) (*Manager, *fakeScheduler) {
	t.Helper()
	sched := &fakeScheduler{}
	m := NewManager(Deps{
		SettingsPath: filepath.Join(t.TempDir(), "config.json"),
		Settings:     settings,
		Store:        store,
		Source:       source,
		Remote:       remote,
		Scheduler:    sched,
		Logger:       zap.NewNop(),
	})
	m.now = func() time.Time { return testNow }
	m.executor.sleep = func(time.Duration) {}
	return m, sched
}

func standupRaw() domain.RawEvent {
	return domain.RawEvent{
		UID:      "uid-1",
		Title:    "Standup",
		Start:    time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
		Calendar: "Work",
	}
}

func TestSyncDisabled(t *testing.T) {
	settings := enabledSettings()
	settings.SyncEnabled = false
	m, _ := newTestManager(t, &fakeSource{}, &fakeRemote{}, &fullStore{memStore: newMemStore()}, settings)

	_, err := m.Sync(context.Background(), false)
	require.ErrorIs(t, err, ErrSyncDisabled)
}

func TestSyncWithoutCalendars(t *testing.T) {
	settings := enabledSettings()
	settings.CalendarsToSync = nil
	m, _ := newTestManager(t, &fakeSource{}, &fakeRemote{}, &fullStore{memStore: newMemStore()}, settings)

	_, err := m.Sync(context.Background(), false)
	require.ErrorIs(t, err, ErrNoCalendars)
}

func TestSyncFullRunPersistsRecords(t *testing.T) {
	store := &fullStore{memStore: newMemStore()}
	source := &fakeSource{events: []domain.RawEvent{standupRaw()}}
	m, _ := newTestManager(t, source, &fakeRemote{}, store, enabledSettings())

	report, err := m.Sync(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, store.Count())

	st := m.Status()
	require.NotNil(t, st.LastSyncTime)
	assert.Equal(t, 1, st.SyncedEvents)
}

func TestSyncDryRunMutatesNothing(t *testing.T) {
	store := &fullStore{memStore: newMemStore()}
	remote := &fakeRemote{}
	source := &fakeSource{events: []domain.RawEvent{standupRaw()}}
	m, _ := newTestManager(t, source, remote, store, enabledSettings())

	report, err := m.Sync(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Created)
	assert.Zero(t, remote.createCalls)
	assert.Zero(t, store.puts)
	assert.Nil(t, m.Status().LastSyncTime, "dry runs must not advance the last sync time")
}

func TestSyncDropsInvalidEvents(t *testing.T) {
	bad := standupRaw()
	bad.End = bad.Start.Add(-time.Hour)
	source := &fakeSource{events: []domain.RawEvent{bad, standupRaw()}}
	store := &fullStore{memStore: newMemStore()}
	m, _ := newTestManager(t, source, &fakeRemote{}, store, enabledSettings())

	report, err := m.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
}

func TestSyncRejectsConcurrentRuns(t *testing.T) {
	source := &fakeSource{block: make(chan struct{})}
	m, _ := newTestManager(t, source, &fakeRemote{}, &fullStore{memStore: newMemStore()}, enabledSettings())

	done := make(chan error, 1)
	go func() {
		_, err := m.Sync(context.Background(), false)
		done <- err
	}()

	// Wait for the first run to take the in-flight flag.
	require.Eventually(t, func() bool {
		return m.Status().SyncInFlight
	}, time.Second, time.Millisecond)

	_, err := m.Sync(context.Background(), false)
	require.ErrorIs(t, err, ErrSyncInProgress)

	close(source.block)
	require.NoError(t, <-done)
}

func TestSchedulerLifecycle(t *testing.T) {
	m, sched := newTestManager(t, &fakeSource{}, &fakeRemote{}, &fullStore{memStore: newMemStore()}, enabledSettings())

	assert.Equal(t, StateUninitialized, m.Status().Lifecycle)

	require.NoError(t, m.StartScheduler())
	assert.Equal(t, StateRunning, m.Status().Lifecycle)
	assert.Equal(t, 4, sched.interval)

	// Starting again is a no-op.
	require.NoError(t, m.StartScheduler())
	assert.Equal(t, 1, sched.starts)

	m.StopScheduler()
	assert.Equal(t, StateStopped, m.Status().Lifecycle)
	assert.False(t, sched.running)
}

func TestConfigurePersistsAndReschedules(t *testing.T) {
	m, sched := newTestManager(t, &fakeSource{}, &fakeRemote{}, &fullStore{memStore: newMemStore()}, enabledSettings())
	require.NoError(t, m.StartScheduler())

	hours := 12
	updated, err := m.Configure(config.SettingsPatch{SyncIntervalHours: &hours})
	require.NoError(t, err)

	assert.Equal(t, 12, updated.SyncIntervalHours)
	assert.Equal(t, 12, m.Settings().SyncIntervalHours)
	assert.Equal(t, 12, sched.interval)
	assert.Equal(t, 2, sched.starts, "interval change must reschedule")

	saved, err := config.LoadSettings(m.settingsPath)
	require.NoError(t, err)
	assert.Equal(t, 12, saved.SyncIntervalHours)
}

func TestConfigureRejectsInvalidPatch(t *testing.T) {
	m, _ := newTestManager(t, &fakeSource{}, &fakeRemote{}, &fullStore{memStore: newMemStore()}, enabledSettings())

	hours := 0
	_, err := m.Configure(config.SettingsPatch{SyncIntervalHours: &hours})
	var cerr *config.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 4, m.Settings().SyncIntervalHours, "rejected patch must not apply")
}

// drainingScheduler mirrors a scheduler whose Stop waits for the
// in-flight job to return before it does.
type drainingScheduler struct {
	fakeScheduler
	jobDone chan struct{}
}

func (s *drainingScheduler) Stop() {
	<-s.jobDone
	s.fakeScheduler.Stop()
}

func newInFlightScheduledRun(t *testing.T) (*Manager, *drainingScheduler, *fakeSource) {
	t.Helper()

	source := &fakeSource{block: make(chan struct{})}
	sched := &drainingScheduler{jobDone: make(chan struct{})}
	m := NewManager(Deps{
		SettingsPath: filepath.Join(t.TempDir(), "config.json"),
		Settings:     enabledSettings(),
		Store:        &fullStore{memStore: newMemStore()},
		Source:       source,
		Remote:       &fakeRemote{},
		Scheduler:    sched,
		Logger:       zap.NewNop(),
	})
	m.executor.sleep = func(time.Duration) {}

	require.NoError(t, m.StartScheduler())
	go func() {
		sched.job()
		close(sched.jobDone)
	}()
	require.Eventually(t, func() bool {
		return m.Status().SyncInFlight
	}, time.Second, time.Millisecond)

	return m, sched, source
}

func TestStopSchedulerWhileScheduledRunInFlight(t *testing.T) {
	m, sched, source := newInFlightScheduledRun(t)

	stopped := make(chan struct{})
	go func() {
		m.StopScheduler()
		close(stopped)
	}()

	// The scheduled run must be able to finish while stop is pending.
	close(source.block)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("StopScheduler never returned while a scheduled run was in flight")
	}

	assert.Equal(t, StateStopped, m.Status().Lifecycle)
	assert.False(t, sched.running)
	require.Eventually(t, func() bool {
		return !m.Status().SyncInFlight
	}, time.Second, time.Millisecond, "the in-flight run must complete untouched")
}

func TestConfigureReschedulesWhileScheduledRunInFlight(t *testing.T) {
	m, sched, source := newInFlightScheduledRun(t)

	hours := 12
	configured := make(chan error, 1)
	go func() {
		_, err := m.Configure(config.SettingsPatch{SyncIntervalHours: &hours})
		configured <- err
	}()

	close(source.block)

	select {
	case err := <-configured:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Configure never returned while a scheduled run was in flight")
	}

	assert.Equal(t, 12, m.Settings().SyncIntervalHours)
	assert.Equal(t, 12, sched.interval)
	assert.Equal(t, 2, sched.starts, "interval change must reschedule")
	require.Eventually(t, func() bool {
		return !m.Status().SyncInFlight
	}, time.Second, time.Millisecond)
}

func TestResetState(t *testing.T) {
	rec := domain.SyncRecord{IdentityKey: "key-1", SourceCalendar: "Work"}
	store := &fullStore{memStore: newMemStore(rec)}
	m, _ := newTestManager(t, &fakeSource{}, &fakeRemote{}, store, enabledSettings())

	require.NoError(t, m.ResetState())
	assert.Zero(t, store.Count())
	assert.Equal(t, 1, store.resets)
}
