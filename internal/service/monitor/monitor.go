// internal/service/monitor/monitor.go

// Package monitor drives the full trend pipeline per user on a configurable
// cadence and on demand, guaranteeing single-flight execution per user.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"trendwire/internal/domain/content"
	"trendwire/internal/domain/trend"
	"trendwire/internal/service/frequency"
	"trendwire/internal/service/market"
	"trendwire/internal/service/spike"
)

// Config holds monitor-wide settings.
type Config struct {
	// DefaultRefreshInterval applies to users without an explicit interval.
	DefaultRefreshInterval time.Duration

	// MinRefreshInterval is the enforced floor; shorter per-user intervals
	// are raised to it to bound external API cost.
	MinRefreshInterval time.Duration

	// TopTerms caps the number of top terms kept in a trend state.
	TopTerms int

	// EventsTopic is the NATS subject prefix for refresh and spike events.
	EventsTopic string

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// DefaultConfig returns the stock monitor settings.
func DefaultConfig() Config {
	return Config{
		DefaultRefreshInterval: 4 * time.Hour,
		MinRefreshInterval:     5 * time.Minute,
		TopTerms:               10,
		EventsTopic:            "trend",
	}
}

// UserConfig is the operator-set per-user scheduling configuration.
type UserConfig struct {
	UserID          string        `json:"user_id"`
	RefreshInterval time.Duration `json:"refresh_interval"`
	Enabled         bool          `json:"enabled"`
}

// job is the single-flight handle for one user's in-flight refresh cycle.
// Coalesced callers wait on done and read the shared outcome.
type job struct {
	done  chan struct{}
	state *trend.TrendState
	err   error
}

// Monitor owns the per-user job table, frequency series and latest trend
// state snapshots. All externally visible state changes go through the
// atomic snapshot swap at the end of a cycle.
type Monitor struct {
	registry   content.Registry
	index      *frequency.Index
	detector   *spike.Detector
	correlator *market.Correlator
	store      trend.StateStore
	eventBus   *nats.Conn
	cfg        Config
	log        *zap.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	users   map[string]UserConfig
	series  map[string]*trend.Series
	states  map[string]*trend.TrendState
	loops   map[string]context.CancelFunc
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a trend monitor. eventBus may be nil to disable event
// publication.
func New(
	registry content.Registry,
	index *frequency.Index,
	detector *spike.Detector,
	correlator *market.Correlator,
	store trend.StateStore,
	eventBus *nats.Conn,
	cfg Config,
	log *zap.Logger,
) *Monitor {
	if cfg.DefaultRefreshInterval <= 0 {
		cfg.DefaultRefreshInterval = 4 * time.Hour
	}
	if cfg.MinRefreshInterval <= 0 {
		cfg.MinRefreshInterval = 5 * time.Minute
	}
	if cfg.TopTerms <= 0 {
		cfg.TopTerms = 10
	}
	if cfg.EventsTopic == "" {
		cfg.EventsTopic = "trend"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		registry:   registry,
		index:      index,
		detector:   detector,
		correlator: correlator,
		store:      store,
		eventBus:   eventBus,
		cfg:        cfg,
		log:        log,
		jobs:       make(map[string]*job),
		users:      make(map[string]UserConfig),
		series:     make(map[string]*trend.Series),
		states:     make(map[string]*trend.TrendState),
		loops:      make(map[string]context.CancelFunc),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetUser registers or updates a user's scheduling configuration. Intervals
// below the floor are raised to it. If the monitor is running, the user's
// scheduler loop is started or stopped to match.
func (m *Monitor) SetUser(cfg UserConfig) error {
	if cfg.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = m.cfg.DefaultRefreshInterval
	}
	if cfg.RefreshInterval < m.cfg.MinRefreshInterval {
		cfg.RefreshInterval = m.cfg.MinRefreshInterval
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return trend.ErrMonitorStopped
	}

	m.users[cfg.UserID] = cfg

	if cancelLoop, ok := m.loops[cfg.UserID]; ok {
		cancelLoop()
		delete(m.loops, cfg.UserID)
	}
	if m.started && cfg.Enabled {
		m.startLoopLocked(cfg)
	}

	return nil
}

// Start launches the scheduler loops for all enabled users.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return trend.ErrMonitorStopped
	}
	if m.started {
		return nil
	}
	m.started = true

	for _, cfg := range m.users {
		if cfg.Enabled {
			m.startLoopLocked(cfg)
		}
	}

	m.log.Info("trend monitor started", zap.Int("users", len(m.users)))
	return nil
}

// startLoopLocked launches one user's refresh loop. Caller holds m.mu.
func (m *Monitor) startLoopLocked(cfg UserConfig) {
	loopCtx, cancelLoop := context.WithCancel(m.ctx)
	m.loops[cfg.UserID] = cancelLoop

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(cfg.RefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if _, err := m.Refresh(loopCtx, cfg.UserID); err != nil {
					m.log.Warn("scheduled refresh failed",
						zap.String("user_id", cfg.UserID),
						zap.Error(err))
				}
			}
		}
	}()
}

// Stop cancels all scheduler loops and waits for in-flight cycles to finish,
// bounded by ctx.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Info("trend monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh runs a refresh cycle for the user, or joins the in-flight one.
// Exactly one cycle executes per user at a time; every concurrent caller
// observes the same resulting state. The cycle itself is never cancelled
// mid-flight; a caller whose ctx expires stops waiting, the cycle completes.
func (m *Monitor) Refresh(ctx context.Context, userID string) (*trend.TrendState, error) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, trend.ErrMonitorStopped
	}

	ucfg, ok := m.users[userID]
	if !ok {
		// First refresh creates the user with default scheduling.
		ucfg = UserConfig{
			UserID:          userID,
			RefreshInterval: m.cfg.DefaultRefreshInterval,
			Enabled:         true,
		}
		m.users[userID] = ucfg
		if m.started {
			m.startLoopLocked(ucfg)
		}
	}
	if !ucfg.Enabled {
		m.mu.Unlock()
		return nil, trend.ErrUserDisabled
	}

	if j, inFlight := m.jobs[userID]; inFlight {
		m.mu.Unlock()
		return m.await(ctx, j)
	}

	j := &job{done: make(chan struct{})}
	m.jobs[userID] = j
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		// The cycle runs on the monitor's context so a caller timeout cannot
		// leave the series half-updated.
		state, err := m.runCycle(m.ctx, userID)

		m.mu.Lock()
		j.state, j.err = state, err
		delete(m.jobs, userID)
		m.mu.Unlock()

		close(j.done)
	}()

	return m.await(ctx, j)
}

// await blocks until the job completes or the caller's context expires.
func (m *Monitor) await(ctx context.Context, j *job) (*trend.TrendState, error) {
	select {
	case <-j.done:
		return j.state.Clone(), j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// State returns the latest consistent trend state for the user, falling back
// to the persisted record after a restart.
func (m *Monitor) State(ctx context.Context, userID string) (*trend.TrendState, error) {
	m.mu.Lock()
	if s, ok := m.states[userID]; ok {
		defer m.mu.Unlock()
		return s.Clone(), nil
	}
	m.mu.Unlock()

	state, err := m.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, ok := m.states[userID]; !ok {
		m.states[userID] = state.Clone()
	}
	m.mu.Unlock()

	return state, nil
}

// Status reports the user's job phase plus staleness metadata.
func (m *Monitor) Status(ctx context.Context, userID string) (trend.JobStatus, error) {
	m.mu.Lock()
	ucfg, known := m.users[userID]
	_, running := m.jobs[userID]
	state := m.states[userID]
	m.mu.Unlock()

	if !known && state == nil {
		loaded, err := m.store.Load(ctx, userID)
		if err != nil {
			return trend.JobStatus{}, err
		}
		state = loaded
	}

	status := trend.JobStatus{
		UserID:          userID,
		Phase:           trend.PhaseIdle,
		Enabled:         ucfg.Enabled,
		RefreshInterval: ucfg.RefreshInterval,
	}
	if state != nil {
		status.Phase = phaseFor(state.RefreshStatus)
		status.LastRefreshedAt = state.LastRefreshedAt
		status.LastStatus = state.RefreshStatus
		if !state.LastRefreshedAt.IsZero() {
			status.Staleness = m.cfg.Clock().Sub(state.LastRefreshedAt)
		}
	}
	if running {
		status.Phase = trend.PhaseRunning
	}

	return status, nil
}

// phaseFor maps a completed cycle's status to the job's resting phase.
func phaseFor(status trend.RefreshStatus) trend.JobPhase {
	switch status {
	case trend.RefreshOK:
		return trend.PhaseSucceeded
	case trend.RefreshPartial:
		return trend.PhasePartiallySucceeded
	case trend.RefreshFailed:
		return trend.PhaseFailed
	default:
		return trend.PhaseIdle
	}
}

// runCycle executes one full pipeline pass for a user: prune, gather,
// index, detect, correlate, persist, swap. The new state is built fully in
// isolation and becomes visible only at the end.
func (m *Monitor) runCycle(ctx context.Context, userID string) (*trend.TrendState, error) {
	now := m.cfg.Clock().UTC()
	current := m.index.Bucket(now)

	m.mu.Lock()
	series, ok := m.series[userID]
	if !ok {
		series = trend.NewSeries()
		m.series[userID] = series
	}
	m.mu.Unlock()

	items, sourceFailures := m.gather(ctx, userID)

	batch := m.index.Apply(series, items, now)
	if batch.Indexed == 0 && series.Len() == 0 {
		m.failCycle(ctx, userID)
		return nil, trend.ErrNoContent
	}

	spikes := m.detector.Detect(series, current, now)
	candidates := m.correlator.Candidates(series, spikes, current)
	outcome := m.correlator.Correlate(ctx, series, candidates, current)

	status := trend.RefreshOK
	if sourceFailures > 0 || len(outcome.Missing)*2 > len(candidates) {
		status = trend.RefreshPartial
	}

	state := &trend.TrendState{
		UserID:          userID,
		CycleID:         uuid.New().String(),
		TopTerms:        series.TopTerms(current, m.cfg.TopTerms),
		Spikes:          spikes,
		Correlations:    outcome.Results,
		MissingTerms:    outcome.Missing,
		SourceFailures:  sourceFailures,
		ItemsIndexed:    batch.Indexed,
		ItemsRejected:   batch.Rejected,
		LastRefreshedAt: now,
		RefreshStatus:   status,
	}

	if err := m.store.Save(ctx, userID, state); err != nil {
		m.failCycle(ctx, userID)
		return nil, fmt.Errorf("saving trend state: %w", err)
	}

	if len(spikes) > 0 {
		if err := m.store.AppendSpikeHistory(ctx, userID, spikes); err != nil {
			m.log.Warn("appending spike history failed",
				zap.String("user_id", userID), zap.Error(err))
		}
	}

	m.mu.Lock()
	m.states[userID] = state
	m.mu.Unlock()

	m.publishEvents(userID, state)

	m.log.Info("refresh cycle completed",
		zap.String("user_id", userID),
		zap.String("cycle_id", state.CycleID),
		zap.String("status", string(status)),
		zap.Int("items", batch.Indexed),
		zap.Int("spikes", len(spikes)),
		zap.Int("correlations", len(outcome.Results)))

	return state.Clone(), nil
}

// gather collects items from every configured connector. A failing source is
// counted, logged and skipped; it never fails the batch.
func (m *Monitor) gather(ctx context.Context, userID string) ([]content.Item, int) {
	var (
		items    []content.Item
		failures int
	)

	for _, c := range m.registry.Connectors(userID) {
		batch, err := c.Fetch(ctx)
		if err != nil {
			failures++
			m.log.Warn("source fetch failed",
				zap.String("user_id", userID),
				zap.String("source", c.Name()),
				zap.Error(err))
			continue
		}
		items = append(items, batch...)
	}

	return items, failures
}

// failCycle marks the visible state as failed without touching its contents
// or LastRefreshedAt; the previous trends stay readable, stale but available.
func (m *Monitor) failCycle(ctx context.Context, userID string) {
	m.mu.Lock()
	prev := m.states[userID]
	m.mu.Unlock()

	if prev == nil {
		loaded, err := m.store.Load(ctx, userID)
		if err != nil {
			if !errors.Is(err, trend.ErrNotFound) {
				m.log.Warn("loading previous state failed",
					zap.String("user_id", userID), zap.Error(err))
			}
			return
		}
		prev = loaded
	}

	failed := prev.Clone()
	failed.RefreshStatus = trend.RefreshFailed

	if err := m.store.Save(ctx, userID, failed); err != nil {
		m.log.Warn("persisting failed status",
			zap.String("user_id", userID), zap.Error(err))
	}

	m.mu.Lock()
	m.states[userID] = failed
	m.mu.Unlock()
}

// refreshEvent is the payload published after each completed cycle.
type refreshEvent struct {
	UserID          string              `json:"user_id"`
	CycleID         string              `json:"cycle_id"`
	RefreshStatus   trend.RefreshStatus `json:"refresh_status"`
	TopTerms        []trend.TopTerm     `json:"top_terms"`
	SpikeCount      int                 `json:"spike_count"`
	LastRefreshedAt time.Time           `json:"last_refreshed_at"`
}

// publishEvents emits the cycle completion event plus one event per
// critical or high severity spike.
func (m *Monitor) publishEvents(userID string, state *trend.TrendState) {
	if m.eventBus == nil {
		return
	}

	ev := refreshEvent{
		UserID:          userID,
		CycleID:         state.CycleID,
		RefreshStatus:   state.RefreshStatus,
		TopTerms:        state.TopTerms,
		SpikeCount:      len(state.Spikes),
		LastRefreshedAt: state.LastRefreshedAt,
	}
	if data, err := json.Marshal(ev); err == nil {
		subject := fmt.Sprintf("%s.%s.refresh", m.cfg.EventsTopic, userID)
		if err := m.eventBus.Publish(subject, data); err != nil {
			m.log.Warn("publishing refresh event failed", zap.Error(err))
		}
	}

	for _, s := range state.Spikes {
		if s.Severity != trend.SeverityCritical && s.Severity != trend.SeverityHigh {
			continue
		}
		data, err := json.Marshal(s)
		if err != nil {
			continue
		}
		subject := fmt.Sprintf("%s.%s.spike", m.cfg.EventsTopic, userID)
		if err := m.eventBus.Publish(subject, data); err != nil {
			m.log.Warn("publishing spike event failed", zap.Error(err))
		}
	}
}
