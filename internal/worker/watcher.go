package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"secret_deal/internal/domain/entity"
	"secret_deal/internal/domain/service/negotiation"
	"secret_deal/internal/tasks"
	"secret_deal/pkg/contextx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

//nolint:gochecknoglobals
var (
	resyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "negotiation_resync_total",
		Help: "Resync cycles by outcome.",
	}, []string{"outcome"})

	resyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "negotiation_resync_duration_seconds",
		Help:    "Full resync duration.",
		Buckets: prometheus.DefBuckets,
	})
)

type negotiationService interface {
	Resync(ctx context.Context) (negotiation.Snapshot, error)
	Snapshot() negotiation.Snapshot
}

type archiveEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// LedgerWatcher периодически ресинхронизирует снапшот с леджером, чтобы
// замечать действия остальных участников, и превращает разницу снапшотов
// в события. Переход к finalized дополнительно ставит задачу архивации.
type LedgerWatcher struct {
	negotiation negotiationService
	events      chan<- entity.NegotiationEvent
	enqueuer    archiveEnqueuer

	interval time.Duration
	lastSeen negotiation.Snapshot

	// Control fields
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	isRunning  bool
	wg         sync.WaitGroup
}

func NewLedgerWatcher(
	negotiationService negotiationService,
	events chan<- entity.NegotiationEvent,
	enqueuer archiveEnqueuer,
	interval time.Duration,
) *LedgerWatcher {
	return &LedgerWatcher{
		negotiation: negotiationService,
		events:      events,
		enqueuer:    enqueuer,
		interval:    interval,
	}
}

func (w *LedgerWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return errors.New("watcher is already running")
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel
	w.isRunning = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			w.isRunning = false
			w.cancelFunc = nil
			w.mu.Unlock()
		}()

		if err := w.Run(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger(watchCtx).Error("watcher stopped with error", "error", err)
		}
	}()

	return nil
}

func (w *LedgerWatcher) Stop() {
	w.mu.Lock()

	if !w.isRunning {
		w.mu.Unlock()
		return
	}

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.mu.Unlock()

	w.wg.Wait()
}

// IsRunning возвращает текущий статус
func (w *LedgerWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

func (w *LedgerWatcher) Run(ctx context.Context) error {
	logger(ctx).Info("ledger watcher started", "interval", w.interval.String())

	w.lastSeen = w.negotiation.Snapshot()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger(ctx).Info("ledger watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *LedgerWatcher) tick(ctx context.Context) {
	start := time.Now()

	snap, err := w.negotiation.Resync(ctx)
	if err != nil {
		resyncTotal.WithLabelValues("error").Inc()
		logger(ctx).Error("resync failed", "error", err)
		return
	}

	resyncTotal.WithLabelValues("ok").Inc()
	resyncDuration.Observe(time.Since(start).Seconds())

	for _, event := range diff(w.lastSeen, snap) {
		w.publish(ctx, event)
	}

	w.lastSeen = snap
}

func (w *LedgerWatcher) publish(ctx context.Context, event entity.NegotiationEvent) {
	if event.Kind == entity.EventDealFinalized && w.enqueuer != nil {
		task, err := tasks.NewArchiveTask(event.DealID)
		if err != nil {
			logger(ctx).Error("build archive task", "error", err)
		} else if _, err := w.enqueuer.EnqueueContext(ctx, task, asynq.Queue(tasks.QueueDefault)); err != nil {
			logger(ctx).Error("enqueue archive task", "error", err)
		}
	}

	if w.events == nil {
		return
	}

	select {
	case w.events <- event:
	case <-ctx.Done():
	}
}

// diff выводит события из пары последовательных снапшотов. Протокол
// монотонный: переходы не откатываются, поэтому сравнение односторонее.
func diff(prev, next negotiation.Snapshot) []entity.NegotiationEvent {
	var events []entity.NegotiationEvent

	add := func(kind entity.EventKind, event entity.NegotiationEvent) {
		event.Kind = kind
		event.DealID = next.DealID
		event.Version = next.Version
		events = append(events, event)
	}

	for _, party := range next.Parties {
		nextOffer, has := next.OfferFor(party)
		if !has {
			continue
		}

		prevOffer, had := prev.OfferFor(party)

		if !had {
			add(entity.EventOfferSubmitted, entity.NegotiationEvent{Party: party})
		}

		if nextOffer.Revealed && (!had || !prevOffer.Revealed) {
			add(entity.EventOfferRevealed, entity.NegotiationEvent{Party: party, Title: nextOffer.Title})
		}
	}

	if next.AllRevealed && !prev.AllRevealed {
		add(entity.EventAllRevealed, entity.NegotiationEvent{})
	}

	if next.Finalized && !prev.Finalized {
		add(entity.EventDealFinalized, entity.NegotiationEvent{})
	}

	return events
}
