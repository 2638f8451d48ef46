package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/starkescrow/starkescrow/internal/apptracker"
	"github.com/starkescrow/starkescrow/internal/entities"
	"github.com/starkescrow/starkescrow/internal/metrics"
)

const (
	defaultPollInterval     = 3 * time.Second
	subscriberBufferSize    = 8
	journalWriteTimeout     = 5 * time.Second
	errMissingTransactionID = "wallet returned no transaction hash"
)

// Executor submits a call sequence as a single network transaction and returns its hash. It is the
// signing capability of a wallet session.
type Executor interface {
	Connected() bool
	Execute(ctx context.Context, calls []entities.Call) (string, error)
}

// ReceiptSource fetches the receipt of an accepted transaction. A receipt that is not available yet is
// reported with entities.ErrTransactionNotFound.
type ReceiptSource interface {
	GetTransactionReceipt(ctx context.Context, transactionHash string) (entities.TransactionReceipt, error)
}

// Journal keeps a history of attempt snapshots.
type Journal interface {
	Record(ctx context.Context, attempt Attempt) error
}

type TrackerConfigs struct {
	Action       string
	Receipts     ReceiptSource
	PollInterval time.Duration
	// OnSuccess is called once, outside of any lock, when an attempt reaches the success phase.
	OnSuccess func(Attempt)
	// Runner runs the observation loop. Defaults to a new goroutine.
	Runner         func(task func())
	MetricsService metrics.MetricsService
	AppTracker     apptracker.AppTracker
	Journal        Journal
	Clock          func() time.Time
	NewID          func() uuid.UUID
}

func (c *TrackerConfigs) ValidateOptions() error {
	if c.Action == "" {
		return errors.New("action is required")
	}
	if c.Receipts == nil {
		return errors.New("receipt source is required")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// Tracker drives the attempts of a single logical action. State changes only go through Transition;
// the tracker performs the I/O and feeds the resulting events back in.
type Tracker struct {
	cfg TrackerConfigs

	mu          sync.Mutex
	current     Attempt
	stopObserve context.CancelFunc
	// attemptOnSuccess belongs to the current attempt and is dropped once it has fired or the attempt is replaced.
	attemptOnSuccess func(Attempt)
	subscribers map[uint64]chan Attempt
	nextSubID   uint64
}

func NewTracker(cfg TrackerConfigs) (*Tracker, error) {
	if err := cfg.ValidateOptions(); err != nil {
		return nil, fmt.Errorf("validating tracker configs: %w", err)
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Runner == nil {
		cfg.Runner = func(task func()) { go task() }
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.New
	}

	return &Tracker{
		cfg:         cfg,
		current:     NewAttempt(cfg.NewID(), cfg.Action),
		subscribers: make(map[uint64]chan Attempt),
	}, nil
}

func (t *Tracker) Action() string {
	return t.cfg.Action
}

// Current returns a snapshot of the current attempt.
func (t *Tracker) Current() Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Submit starts a fresh attempt and hands the calls to the session. It returns ErrAttemptInFlight, without
// touching the current attempt, when that attempt is still pending. Failures of the submission itself are
// reported through the returned attempt, not the error. onSuccess is optional and fires at most once, when
// this attempt succeeds.
func (t *Tracker) Submit(ctx context.Context, session Executor, calls []entities.Call, onSuccess func(Attempt)) (Attempt, error) {
	t.mu.Lock()
	if t.current.IsPending() {
		current := t.current
		t.mu.Unlock()
		return current, ErrAttemptInFlight
	}
	id := t.cfg.NewID()
	now := t.cfg.Clock()
	prev := t.current
	if t.stopObserve != nil {
		t.stopObserve()
		t.stopObserve = nil
	}
	fresh, _ := Transition(prev, Event{Type: EventReset, AttemptID: id, At: now})
	pending, _ := Transition(fresh, Event{Type: EventSubmitted, AttemptID: id, At: now})
	t.current = pending
	t.attemptOnSuccess = onSuccess
	t.publishLocked(pending)
	t.mu.Unlock()
	t.afterTransition(ctx, prev, pending, EventSubmitted)

	log.Ctx(ctx).Infof("📤 [%s] submitting attempt %s with %d call(s)", t.cfg.Action, id, len(calls))

	switch {
	case session == nil || !session.Connected():
		return t.applyAndGet(ctx, Event{Type: EventSubmissionFailed, AttemptID: id, Err: ErrWalletNotConnected}), nil
	case len(calls) == 0:
		return t.applyAndGet(ctx, Event{Type: EventSubmissionFailed, AttemptID: id, Err: ErrEmptyCallSequence}), nil
	}

	hash, err := session.Execute(ctx, calls)
	if err == nil && hash == "" {
		err = errors.New(errMissingTransactionID)
	}
	if err != nil {
		log.Ctx(ctx).Warnf("[%s] submission of attempt %s failed: %v", t.cfg.Action, id, err)
		return t.applyAndGet(ctx, Event{Type: EventSubmissionFailed, AttemptID: id, Err: err}), nil
	}

	accepted, ok := t.apply(ctx, Event{Type: EventAccepted, AttemptID: id, TransactionHash: hash})
	if !ok {
		// The attempt was reset while the wallet was busy; the transaction is no longer tracked.
		log.Ctx(ctx).Warnf("[%s] attempt %s was discarded before transaction %s was accepted", t.cfg.Action, id, hash)
		return t.Current(), nil
	}
	t.startObservation(accepted)
	return accepted, nil
}

// Reset discards the current attempt, cancelling its observation, and returns a fresh idle one.
func (t *Tracker) Reset(ctx context.Context) Attempt {
	return t.applyAndGet(ctx, Event{Type: EventReset, AttemptID: t.cfg.NewID()})
}

// Abandon stops observing the current attempt without changing it. The network transaction, if any, is
// not cancelled. Returns false when there was nothing to abandon.
func (t *Tracker) Abandon(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopObserve == nil {
		return false
	}
	t.stopObserve()
	t.stopObserve = nil
	log.Ctx(ctx).Infof("[%s] stopped observing attempt %s", t.cfg.Action, t.current.ID)
	return true
}

// Observing reports whether the current attempt's receipt is being polled.
func (t *Tracker) Observing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopObserve != nil
}

// Subscribe returns a channel receiving every applied snapshot, starting with the current one. Slow
// readers lose intermediate snapshots but always end up with the latest. The channel is closed by the
// returned cancel func or by Shutdown.
func (t *Tracker) Subscribe() (<-chan Attempt, func()) {
	ch := make(chan Attempt, subscriberBufferSize)

	t.mu.Lock()
	id := t.nextSubID
	t.nextSubID++
	t.subscribers[id] = ch
	ch <- t.current
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if sub, ok := t.subscribers[id]; ok {
				delete(t.subscribers, id)
				close(sub)
			}
		})
	}
}

// Shutdown stops any observation and closes all subscriptions.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopObserve != nil {
		t.stopObserve()
		t.stopObserve = nil
	}
	for id, ch := range t.subscribers {
		delete(t.subscribers, id)
		close(ch)
	}
}

func (t *Tracker) applyAndGet(ctx context.Context, e Event) Attempt {
	next, ok := t.apply(ctx, e)
	if !ok {
		return t.Current()
	}
	return next
}

// apply runs the event through Transition and performs the side effects of an accepted transition.
func (t *Tracker) apply(ctx context.Context, e Event) (Attempt, bool) {
	if e.At.IsZero() {
		e.At = t.cfg.Clock()
	}

	t.mu.Lock()
	prev := t.current
	next, ok := Transition(prev, e)
	if !ok {
		t.mu.Unlock()
		log.Ctx(ctx).Debugf("[%s] ignoring %s event for attempt %s", t.cfg.Action, e.Type, e.AttemptID)
		return prev, false
	}
	t.current = next
	if t.stopObserve != nil && (next.ID != prev.ID || next.IsTerminal()) {
		t.stopObserve()
		t.stopObserve = nil
	}
	var onSuccess func(Attempt)
	if next.ID != prev.ID || next.IsTerminal() {
		if next.Phase == PhaseSuccess {
			onSuccess = t.attemptOnSuccess
		}
		t.attemptOnSuccess = nil
	}
	t.publishLocked(next)
	t.mu.Unlock()

	t.afterTransition(ctx, prev, next, e.Type)
	if onSuccess != nil {
		onSuccess(next)
	}
	if e.Type == EventReceiptFailed && e.Err != nil {
		log.Ctx(ctx).Errorf("[%s] receipt query for %s failed: %v", t.cfg.Action, next.TransactionHash, e.Err)
	}
	return next, true
}

// publishLocked must be called with t.mu held so that every subscriber sees snapshots in order.
func (t *Tracker) publishLocked(a Attempt) {
	for _, ch := range t.subscribers {
		select {
		case ch <- a:
			continue
		default:
		}
		// Buffer full: drop the oldest snapshot to make room for the latest.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- a:
		default:
		}
	}
}

func (t *Tracker) afterTransition(ctx context.Context, prev, next Attempt, event EventType) {
	if ms := t.cfg.MetricsService; ms != nil {
		ms.IncAttemptTransitions(string(event), string(next.Phase))
		if !prev.IsPending() && next.IsPending() {
			ms.IncPendingAttempts()
		}
		if prev.IsPending() && !next.IsPending() {
			ms.DecPendingAttempts()
		}
	}

	if next.IsTerminal() && !prev.IsTerminal() {
		t.onTerminal(ctx, next)
	}

	if t.cfg.Journal != nil && next.Phase != PhaseIdle {
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalWriteTimeout)
		defer cancel()
		if err := t.cfg.Journal.Record(jctx, next); err != nil {
			log.Ctx(ctx).Errorf("[%s] recording attempt %s: %v", t.cfg.Action, next.ID, err)
		}
	}
}

func (t *Tracker) onTerminal(ctx context.Context, a Attempt) {
	outcome := string(a.Phase)
	if a.Phase == PhaseError {
		outcome = string(a.ErrorKind)
	}
	if ms := t.cfg.MetricsService; ms != nil {
		ms.IncAttemptOutcomes(ActionKind(a.Action), outcome)
		if !a.StartedAt.IsZero() {
			ms.ObserveAttemptDuration(ActionKind(a.Action), outcome, a.UpdatedAt.Sub(a.StartedAt).Seconds())
		}
	}

	if a.Phase == PhaseSuccess {
		log.Ctx(ctx).Infof("✅ [%s] transaction %s confirmed", a.Action, a.TransactionHash)
		if t.cfg.OnSuccess != nil {
			t.cfg.OnSuccess(a)
		}
		return
	}

	log.Ctx(ctx).Warnf("❌ [%s] attempt %s failed: %s", a.Action, a.ID, a.ErrorMessage)
	if t.cfg.AppTracker != nil {
		t.cfg.AppTracker.CaptureExceptionWithTags(a.Err(), map[string]string{
			"action":           a.Action,
			"attempt_id":       a.ID.String(),
			"error_kind":       string(a.ErrorKind),
			"transaction_hash": a.TransactionHash,
		})
	}
}

func (t *Tracker) startObservation(a Attempt) {
	ctx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	if t.current.ID != a.ID || !t.current.IsPending() {
		t.mu.Unlock()
		cancel()
		return
	}
	if t.stopObserve != nil {
		t.stopObserve()
	}
	t.stopObserve = cancel
	t.mu.Unlock()

	t.cfg.Runner(func() {
		t.observe(ctx, a.ID, a.TransactionHash)
	})
}

// observe polls the receipt of the given transaction until it reaches a terminal outcome, fails, or the
// context is cancelled. There is no deadline: an attempt may stay pending forever.
func (t *Tracker) observe(ctx context.Context, id uuid.UUID, hash string) {
	if ctx.Err() != nil {
		return
	}
	t.apply(ctx, Event{Type: EventObserved, AttemptID: id, TransactionHash: hash})

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.cfg.Receipts.GetTransactionReceipt(ctx, hash)
		if ctx.Err() != nil {
			return
		}
		switch {
		case errors.Is(err, entities.ErrTransactionNotFound):
			log.Ctx(ctx).Debugf("[%s] transaction %s not visible yet", t.cfg.Action, hash)
		case err != nil:
			t.apply(ctx, Event{Type: EventReceiptFailed, AttemptID: id, TransactionHash: hash, Err: err})
			return
		case receipt.Outcome() != entities.OutcomeUnknown:
			t.apply(ctx, Event{Type: EventReceiptReceived, AttemptID: id, TransactionHash: hash, Receipt: &receipt})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ActionKind is the verb of an action key, e.g. "release" for "escrow:7:release".
func ActionKind(action string) string {
	if i := strings.LastIndex(action, ":"); i >= 0 {
		return action[i+1:]
	}
	return action
}
