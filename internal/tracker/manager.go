package tracker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/metrics"
)

const ObserverPoolName = "attempt_observer"

type ManagerConfigs struct {
	Receipts     ReceiptSource
	PollInterval time.Duration
	// MaxObservers bounds the number of receipts polled concurrently. Further observations queue.
	MaxObservers   int
	OnSuccess      func(Attempt)
	MetricsService metrics.MetricsService
	AppTracker     apptracker.AppTracker
	Journal        Journal
}

// Manager keeps one tracker per logical action. Attempts of different actions are independent.
type Manager struct {
	cfg  ManagerConfigs
	pool pond.Pool

	mu           sync.RWMutex
	trackers     map[string]*Tracker
	groups       map[string]*sync.Mutex
	stopped      bool
	shutdownOnce sync.Once
}

func NewManager(cfg ManagerConfigs) (*Manager, error) {
	if cfg.Receipts == nil {
		return nil, errors.New("receipt source is required")
	}
	if cfg.MaxObservers <= 0 {
		return nil, fmt.Errorf("max observers must be greater than 0, got %d", cfg.MaxObservers)
	}

	pool := pond.NewPool(cfg.MaxObservers)
	if cfg.MetricsService != nil {
		cfg.MetricsService.RegisterPoolMetrics(ObserverPoolName, pool)
	}

	return &Manager{
		cfg:      cfg,
		pool:     pool,
		trackers: make(map[string]*Tracker),
		groups:   make(map[string]*sync.Mutex),
	}, nil
}

func (m *Manager) tracker(action string) (*Tracker, error) {
	m.mu.RLock()
	t, ok := m.trackers[action]
	stopped := m.stopped
	m.mu.RUnlock()
	if stopped {
		return nil, ErrManagerStopped
	}
	if ok {
		return t, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, ErrManagerStopped
	}
	if t, ok = m.trackers[action]; ok {
		return t, nil
	}
	t, err := NewTracker(TrackerConfigs{
		Action:         action,
		Receipts:       m.cfg.Receipts,
		PollInterval:   m.cfg.PollInterval,
		OnSuccess:      m.cfg.OnSuccess,
		Runner:         func(task func()) { m.pool.Submit(task) },
		MetricsService: m.cfg.MetricsService,
		AppTracker:     m.cfg.AppTracker,
		Journal:        m.cfg.Journal,
	})
	if err != nil {
		return nil, fmt.Errorf("creating tracker for %q: %w", action, err)
	}
	m.trackers[action] = t
	return t, nil
}

func (m *Manager) lookup(action string) (*Tracker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trackers[action]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return t, nil
}

// Submit starts a new attempt for the action. See Tracker.Submit.
func (m *Manager) Submit(ctx context.Context, action string, session Executor, calls []entities.Call, onSuccess func(Attempt)) (Attempt, error) {
	t, err := m.tracker(action)
	if err != nil {
		return Attempt{}, err
	}
	return t.Submit(ctx, session, calls, onSuccess)
}

// SubmitInGroup is Submit for actions that exclude each other. Every action whose name starts with group
// belongs to it, and a submission is refused with ErrAttemptInFlight while any of them is pending. The
// returned attempt is then the pending one.
func (m *Manager) SubmitInGroup(ctx context.Context, group, action string, session Executor, calls []entities.Call, onSuccess func(Attempt)) (Attempt, error) {
	if group == "" || !strings.HasPrefix(action, group) {
		return Attempt{}, fmt.Errorf("action %q is not part of group %q", action, group)
	}
	t, err := m.tracker(action)
	if err != nil {
		return Attempt{}, err
	}

	lock := m.groupLock(group)
	lock.Lock()
	defer lock.Unlock()

	if pending, ok := m.pendingIn(group); ok {
		return pending, ErrAttemptInFlight
	}
	return t.Submit(ctx, session, calls, onSuccess)
}

func (m *Manager) groupLock(group string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.groups[group]
	if !ok {
		lock = &sync.Mutex{}
		m.groups[group] = lock
	}
	return lock
}

func (m *Manager) pendingIn(group string) (Attempt, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for action, t := range m.trackers {
		if !strings.HasPrefix(action, group) {
			continue
		}
		if current := t.Current(); current.IsPending() {
			return current, true
		}
	}
	return Attempt{}, false
}

func (m *Manager) Get(action string) (Attempt, error) {
	t, err := m.lookup(action)
	if err != nil {
		return Attempt{}, err
	}
	return t.Current(), nil
}

// List returns the current attempt of every known action, ordered by action.
func (m *Manager) List() []Attempt {
	m.mu.RLock()
	attempts := make([]Attempt, 0, len(m.trackers))
	for _, t := range m.trackers {
		attempts = append(attempts, t.Current())
	}
	m.mu.RUnlock()

	slices.SortFunc(attempts, func(a, b Attempt) int {
		return cmp.Compare(a.Action, b.Action)
	})
	return attempts
}

func (m *Manager) Reset(ctx context.Context, action string) (Attempt, error) {
	t, err := m.lookup(action)
	if err != nil {
		return Attempt{}, err
	}
	return t.Reset(ctx), nil
}

// Abandon stops observing the action's pending attempt, leaving it pending.
func (m *Manager) Abandon(ctx context.Context, action string) (Attempt, error) {
	t, err := m.lookup(action)
	if err != nil {
		return Attempt{}, err
	}
	t.Abandon(ctx)
	return t.Current(), nil
}

// Close dismisses the action's attempt. A pending attempt is only dismissed when force is set, in which
// case its observation is abandoned before the reset. Idle and terminal attempts are always dismissed.
func (m *Manager) Close(ctx context.Context, action string, force bool) (Attempt, error) {
	t, err := m.lookup(action)
	if err != nil {
		return Attempt{}, err
	}

	current := t.Current()
	if current.IsPending() {
		if !force {
			return current, ErrCloseWhilePending
		}
		log.Ctx(ctx).Warnf("[%s] force closing pending attempt %s (transaction %q)", action, current.ID, current.TransactionHash)
		t.Abandon(ctx)
	}
	return t.Reset(ctx), nil
}

// Subscribe streams the snapshots of the action's attempts. Only actions that were submitted at least once
// can be followed.
func (m *Manager) Subscribe(action string) (<-chan Attempt, func(), error) {
	m.mu.RLock()
	stopped := m.stopped
	m.mu.RUnlock()
	if stopped {
		return nil, nil, ErrManagerStopped
	}
	t, err := m.lookup(action)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := t.Subscribe()
	return ch, cancel, nil
}

// Shutdown stops every observation, closes all subscriptions and waits for the observer pool to drain.
func (m *Manager) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.mu.Lock()
		m.stopped = true
		trackers := make([]*Tracker, 0, len(m.trackers))
		for _, t := range m.trackers {
			trackers = append(trackers, t)
		}
		m.mu.Unlock()

		for _, t := range trackers {
			t.Shutdown()
		}
		m.pool.StopAndWait()
	})
}
