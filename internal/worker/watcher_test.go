package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"secret_deal/internal/domain/entity"
	"secret_deal/internal/domain/service/negotiation"
	"secret_deal/internal/domain/value"
	"secret_deal/internal/tasks"
)

var (
	alice = value.Address{0xa1}
	bob   = value.Address{0xb2}
)

func snap(version uint64, allRevealed, finalized bool, offers map[value.Address]entity.Offer) negotiation.Snapshot {
	return negotiation.Snapshot{
		DealID:      7,
		Version:     version,
		Parties:     []value.Address{alice, bob},
		Offers:      offers,
		AllRevealed: allRevealed,
		Finalized:   finalized,
	}
}

func kinds(events []entity.NegotiationEvent) []entity.EventKind {
	out := make([]entity.EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestDiffOfferSubmitted(t *testing.T) {
	rq := require.New(t)

	prev := snap(1, false, false, nil)
	next := snap(2, false, false, map[value.Address]entity.Offer{
		alice: {Party: alice},
	})

	events := diff(prev, next)
	rq.Len(events, 1)
	rq.Equal(entity.EventOfferSubmitted, events[0].Kind)
	rq.Equal(alice, events[0].Party)
	rq.Equal(uint64(7), events[0].DealID)
	rq.Equal(uint64(2), events[0].Version)
}

func TestDiffOfferRevealed(t *testing.T) {
	rq := require.New(t)

	prev := snap(1, false, false, map[value.Address]entity.Offer{
		alice: {Party: alice, Title: "Supply contract"},
	})
	next := snap(2, false, false, map[value.Address]entity.Offer{
		alice: {Party: alice, Title: "Supply contract", Revealed: true},
	})

	events := diff(prev, next)
	rq.Len(events, 1)
	rq.Equal(entity.EventOfferRevealed, events[0].Kind)
	rq.Equal("Supply contract", events[0].Title)
}

func TestDiffSubmitAndRevealInOneCycle(t *testing.T) {
	rq := require.New(t)

	// Между двумя ресинхронизациями участник успел и отправить, и раскрыть.
	prev := snap(1, false, false, nil)
	next := snap(2, false, false, map[value.Address]entity.Offer{
		bob: {Party: bob, Title: "Counter", Revealed: true},
	})

	events := diff(prev, next)
	rq.Equal([]entity.EventKind{entity.EventOfferSubmitted, entity.EventOfferRevealed}, kinds(events))
}

func TestDiffAllRevealedAndFinalized(t *testing.T) {
	rq := require.New(t)

	offers := map[value.Address]entity.Offer{
		alice: {Party: alice, Revealed: true},
		bob:   {Party: bob, Revealed: true},
	}

	events := diff(snap(1, false, false, offers), snap(2, true, false, offers))
	rq.Equal([]entity.EventKind{entity.EventAllRevealed}, kinds(events))

	events = diff(snap(2, true, false, offers), snap(3, true, true, offers))
	rq.Equal([]entity.EventKind{entity.EventDealFinalized}, kinds(events))
}

func TestDiffNoChanges(t *testing.T) {
	rq := require.New(t)

	offers := map[value.Address]entity.Offer{alice: {Party: alice, Revealed: true}}

	s := snap(2, false, false, offers)
	rq.Empty(diff(s, snap(3, false, false, offers)))
	rq.Empty(diff(snap(1, true, true, offers), snap(2, true, true, offers)))
}

type stubNegotiation struct {
	mu    sync.Mutex
	snaps []negotiation.Snapshot
	idx   int
}

func (s *stubNegotiation) Resync(context.Context) (negotiation.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx < len(s.snaps)-1 {
		s.idx++
	}
	return s.snaps[s.idx], nil
}

func (s *stubNegotiation) Snapshot() negotiation.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snaps[s.idx]
}

type stubEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func TestWatcherPublishesTransitions(t *testing.T) {
	rq := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	offers := map[value.Address]entity.Offer{
		alice: {Party: alice, Revealed: true},
		bob:   {Party: bob, Revealed: true},
	}

	negotiationStub := &stubNegotiation{snaps: []negotiation.Snapshot{
		snap(1, true, false, offers),
		snap(2, true, true, offers),
	}}
	enqueuer := &stubEnqueuer{}
	events := make(chan entity.NegotiationEvent, 10)

	w := NewLedgerWatcher(negotiationStub, events, enqueuer, 5*time.Millisecond)

	rq.NoError(w.Start(ctx))
	rq.True(w.IsRunning())

	select {
	case event := <-events:
		rq.Equal(entity.EventDealFinalized, event.Kind)
	case <-time.After(time.Second):
		t.Fatal("no event within deadline")
	}

	w.Stop()
	rq.False(w.IsRunning())

	enqueuer.mu.Lock()
	defer enqueuer.mu.Unlock()
	rq.NotEmpty(enqueuer.tasks)
	rq.Equal(tasks.TypeAgreementArchive, enqueuer.tasks[0].Type())
}

func TestWatcherDoubleStart(t *testing.T) {
	rq := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	negotiationStub := &stubNegotiation{snaps: []negotiation.Snapshot{snap(1, false, false, nil)}}
	w := NewLedgerWatcher(negotiationStub, nil, nil, time.Minute)

	rq.NoError(w.Start(ctx))
	rq.Error(w.Start(ctx))

	w.Stop()
}
