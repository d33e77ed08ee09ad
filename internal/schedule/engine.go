package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"chatd/internal/chat"
	"chatd/internal/metrics"
)

const defaultTickInterval = 30 * time.Second

// Dispatcher is the delivery primitive the engine shares with live
// traffic: one private dispatch persists the message and pushes it to
// whoever is online.
type Dispatcher interface {
	DispatchPrivate(ctx context.Context, m *chat.Message) (*chat.Message, error)
}

// Engine scans for due scheduled entries on a fixed interval and
// converts them into normal private messages. It is owned by the
// process lifecycle: Start on boot, Stop on shutdown, with RunOnce as
// the manual trigger for operators and tests.
//
// Every due entry is claimed (compare-and-set on the sent flag) before
// dispatch, so the timer tick and a concurrent manual trigger can never
// both deliver the same entry.
type Engine struct {
	store      EntryStore
	dispatcher Dispatcher
	logger     *log.Logger
	now        func() time.Time
	interval   time.Duration

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures the engine.
type Option func(*Engine)

// WithInterval overrides the tick interval.
func WithInterval(interval time.Duration) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.interval = interval
		}
	}
}

// WithNow overrides the clock for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(store EntryStore, dispatcher Dispatcher, logger *log.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
		interval:   defaultTickInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the timer loop. Starting twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.runDue(ctx)
			}
		}
	}()
}

// Stop cancels the timer loop and waits for it, bounded by ctx.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes one tick immediately and returns how many entries
// were delivered. Safe to call concurrently with the timer: the claim
// step arbitrates.
func (e *Engine) RunOnce(ctx context.Context) int {
	return e.runDue(ctx)
}

// runDue processes each due entry independently: one entry's failure
// must not block the others.
func (e *Engine) runDue(ctx context.Context) int {
	due, err := e.store.FindDue(ctx, e.now())
	if err != nil {
		e.logger.Error("scheduled scan failed", "error", err)
		return 0
	}

	delivered := 0
	for _, entry := range due {
		ok, err := e.deliver(ctx, entry)
		if err != nil {
			e.logger.Error("scheduled delivery failed, will retry next tick",
				"entry", entry.ID, "receiver", entry.ReceiverName, "error", err)
			metrics.ScheduledFailures.Inc()
			continue
		}
		if ok {
			delivered++
		}
	}
	return delivered
}

// deliver reports whether this call actually delivered the entry; a
// false/nil result means another tick claimed it first.
func (e *Engine) deliver(ctx context.Context, entry *Entry) (bool, error) {
	claimed, err := e.store.ClaimEntry(ctx, entry.ID)
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	msg := &chat.Message{
		SenderName:   entry.SenderName,
		ReceiverName: entry.ReceiverName,
		Body:         entry.Body,
		Status:       chat.StatusMessage,
	}
	if _, err := e.dispatcher.DispatchPrivate(ctx, msg); err != nil {
		// Give the claim back so the next tick retries. If the release
		// itself fails the entry stays claimed and is effectively lost
		// until an operator intervenes; log loudly.
		if relErr := e.store.ReleaseEntry(ctx, entry.ID); relErr != nil {
			e.logger.Error("failed to release claimed entry", "entry", entry.ID, "error", relErr)
		}
		return false, err
	}

	metrics.ScheduledDelivered.Inc()
	e.logger.Info("scheduled message delivered",
		"entry", entry.ID, "kind", entry.Kind, "receiver", entry.ReceiverName)
	return true, nil
}
