package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"shopping-agent/internal/application/port/input"
	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
	"shopping-agent/internal/domain/mission"
	"shopping-agent/internal/usecase/orchestrator"

	"github.com/google/uuid"
)

var _ input.MissionService = (*Manager)(nil)

type Runner interface {
	Start(ctx context.Context, s mission.State, cancelled func() bool) (mission.State, orchestrator.Outcome)
	Resume(ctx context.Context, s mission.State, approved bool, cancelled func() bool) (mission.State, orchestrator.Outcome)
}

// RunnerFactory builds the loop for one session together with the resources
// it owns, typically its browser.
type RunnerFactory func(ctx context.Context, sessionID string, sink output.EventSink) (Runner, io.Closer, error)

type Config struct {
	MaxIterations int
	EventBuffer   int
	SendTimeout   time.Duration
	MaxAge        time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxIterations: 20,
		EventBuffer:   64,
		SendTimeout:   2 * time.Second,
		MaxAge:        24 * time.Hour,
	}
}

type Session struct {
	ID        string
	Goal      string
	URL       string
	CreatedAt time.Time

	mu        sync.Mutex
	state     mission.State
	status    string
	iteration int
	running   bool
	outcome   orchestrator.Outcome

	cancelled atomic.Bool
	cancelCh  chan struct{}
	cancelMu  sync.Once
	decisions chan bool
	done      chan struct{}
}

func (s *Session) requestCancel() {
	s.cancelled.Store(true)
	s.cancelMu.Do(func() { close(s.cancelCh) })
}

func (s *Session) isCancelled() bool {
	return s.cancelled.Load()
}

func (s *Session) observe(ev entity.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.Status != "" {
		s.status = ev.Status
	}
	if ev.Iteration > s.iteration {
		s.iteration = ev.Iteration
	}
}

func (s *Session) settle(state mission.State, outcome orchestrator.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.status = string(state.Status)
	s.iteration = state.Iteration
	s.outcome = outcome
}

func (s *Session) snapshot() input.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := input.SessionSnapshot{
		ID:              s.ID,
		Goal:            s.Goal,
		URL:             s.URL,
		CreatedAt:       s.CreatedAt,
		Running:         s.running,
		Cancelled:       s.cancelled.Load(),
		Status:          s.status,
		Outcome:         string(s.outcome),
		Iteration:       s.iteration,
		MaxIterations:   s.state.MaxIterations,
		CurrentURL:      s.state.CurrentURL,
		History:         append([]entity.ActionRecord(nil), s.state.History...),
		PendingApproval: s.state.PendingApproval,
		Error:           s.state.Error,
	}
	if !s.running {
		snap.Summary = s.state.Summary()
	}
	return snap
}

// Manager runs missions as independent sessions. Sessions share nothing but
// the manager's bookkeeping.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	factory RunnerFactory
	cfg     Config
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time

	logger  output.LoggerPort
	metrics output.MetricsPort
}

func NewManager(factory RunnerFactory, cfg Config, logger output.LoggerPort, metrics output.MetricsPort) *Manager {
	if metrics == nil {
		metrics = output.NopMetrics{}
	}
	defaults := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaults.MaxIterations
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaults.EventBuffer
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaults.SendTimeout
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaults.MaxAge
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		sessions: make(map[string]*Session),
		factory:  factory,
		cfg:      cfg,
		baseCtx:  ctx,
		stop:     stop,
		now:      time.Now,
		logger:   logger.WithField("component", "session"),
		metrics:  metrics,
	}
}

// Start creates a session and runs its mission in the background. The
// returned channel is closed once the mission has terminated.
func (m *Manager) Start(ctx context.Context, req input.StartRequest) (string, <-chan entity.Event, error) {
	goal := strings.TrimSpace(req.Goal)
	if goal == "" {
		return "", nil, errors.New("goal is required")
	}
	maxIter := req.MaxIterations
	if maxIter <= 0 {
		maxIter = m.cfg.MaxIterations
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Goal:      goal,
		URL:       strings.TrimSpace(req.URL),
		CreatedAt: m.now(),
		running:   true,
		status:    string(mission.StatusPlanning),
		cancelCh:  make(chan struct{}),
		decisions: make(chan bool, 1),
		done:      make(chan struct{}),
	}
	sess.state = mission.New(sess.ID, sess.Goal, sess.URL, maxIter)

	pub := newPublisher(m.cfg.EventBuffer, m.cfg.SendTimeout, sess.observe, m.logger, m.metrics)
	runner, closer, err := m.factory(ctx, sess.ID, pub)
	if err != nil {
		return "", nil, fmt.Errorf("prepare session: %w", err)
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(sess, runner, closer, pub)

	m.logger.Info("Session started", "session", sess.ID, "goal", sess.Goal, "url", sess.URL)
	return sess.ID, pub.ch, nil
}

func (m *Manager) run(sess *Session, runner Runner, closer io.Closer, pub *publisher) {
	defer m.wg.Done()
	defer close(sess.done)
	defer pub.close()
	defer func() {
		if closer != nil {
			if err := closer.Close(); err != nil {
				m.logger.Warn("Failed to release session resources", "session", sess.ID, "error", err)
			}
		}
	}()

	ctx := m.baseCtx
	state, outcome := runner.Start(ctx, sess.state, sess.isCancelled)
	sess.settle(state, outcome)

	for outcome == orchestrator.OutcomeWaitingApproval {
		select {
		case approved := <-sess.decisions:
			state, outcome = runner.Resume(ctx, state, approved, sess.isCancelled)
			sess.settle(state, outcome)
		case <-sess.cancelCh:
			outcome = m.cancelWaiting(sess, pub, state)
		case <-ctx.Done():
			outcome = m.cancelWaiting(sess, pub, state)
		}
	}

	sess.mu.Lock()
	sess.running = false
	sess.mu.Unlock()
	m.logger.Info("Session finished", "session", sess.ID, "outcome", outcome)
}

func (m *Manager) cancelWaiting(sess *Session, pub *publisher, state mission.State) orchestrator.Outcome {
	state = state.ClearApproval()
	sess.settle(state, orchestrator.OutcomeCancelled)
	m.metrics.MissionFinished(string(orchestrator.OutcomeCancelled))
	pub.Publish(entity.Event{
		Type:      entity.EventCancelled,
		SessionID: sess.ID,
		Timestamp: m.now(),
		Status:    string(state.Status),
		Iteration: state.Iteration,
		Summary:   state.Summary(),
	})
	return orchestrator.OutcomeCancelled
}

func (m *Manager) lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Get(id string) (input.SessionSnapshot, bool) {
	s, ok := m.lookup(id)
	if !ok {
		return input.SessionSnapshot{}, false
	}
	return s.snapshot(), true
}

func (m *Manager) List() []input.SessionSnapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]input.SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Done is closed when the session's mission has terminated.
func (m *Manager) Done(id string) (<-chan struct{}, bool) {
	s, ok := m.lookup(id)
	if !ok {
		return nil, false
	}
	return s.done, true
}

// Cancel asks the session to stop after its current cycle. It reports false
// for unknown or finished sessions.
func (m *Manager) Cancel(id string) bool {
	s, ok := m.lookup(id)
	if !ok || !m.active(s) {
		return false
	}
	s.requestCancel()
	m.logger.Info("Cancel requested", "session", id)
	return true
}

func (m *Manager) Approve(id string) bool {
	return m.decide(id, true)
}

func (m *Manager) Deny(id string) bool {
	return m.decide(id, false)
}

func (m *Manager) decide(id string, approved bool) bool {
	s, ok := m.lookup(id)
	if !ok || !m.active(s) {
		return false
	}

	// Only one decision is accepted per suspension.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome != orchestrator.OutcomeWaitingApproval {
		return false
	}
	s.outcome = ""
	s.decisions <- approved

	m.logger.Info("Approval decision received", "session", id, "approved", approved)
	return true
}

func (m *Manager) active(s *Session) bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if m.active(s) {
			n++
		}
	}
	return n
}

// CleanupOlderThan cancels sessions older than maxAge and forgets the ones
// that have finished. It returns how many sessions were removed.
func (m *Manager) CleanupOlderThan(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if !s.CreatedAt.Before(cutoff) {
			continue
		}
		if m.active(s) {
			s.requestCancel()
			continue
		}
		delete(m.sessions, id)
		removed++
	}
	if removed > 0 {
		m.logger.Info("Cleaned up old sessions", "removed", removed)
	}
	return removed
}

// RunCleanup prunes sessions older than the configured max age every
// interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupOlderThan(m.cfg.MaxAge)
		}
	}
}

// Shutdown cancels every session and waits for their loops to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	for _, s := range m.sessions {
		s.requestCancel()
	}
	m.mu.RUnlock()
	m.stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
