package negotiation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"secret_deal/internal/domain/entity"
	"secret_deal/internal/domain/service/negotiation"
	"secret_deal/internal/domain/value"
)

func snapshotWith(finalized, allRevealed bool, offers map[value.Address]entity.Offer) negotiation.Snapshot {
	return negotiation.Snapshot{
		DealID:      testDealID,
		Parties:     []value.Address{alice, bob},
		Offers:      offers,
		AllRevealed: allRevealed,
		Finalized:   finalized,
	}
}

func TestSnapshotCanSubmit(t *testing.T) {
	rq := require.New(t)

	sealed := map[value.Address]entity.Offer{alice: {Party: alice}}

	rq.True(snapshotWith(false, false, nil).CanSubmit(alice))
	rq.False(snapshotWith(false, false, sealed).CanSubmit(alice))
	rq.True(snapshotWith(false, false, sealed).CanSubmit(bob))
	rq.False(snapshotWith(true, false, nil).CanSubmit(alice))
}

func TestSnapshotCanReveal(t *testing.T) {
	rq := require.New(t)

	sealed := map[value.Address]entity.Offer{alice: {Party: alice}}
	revealed := map[value.Address]entity.Offer{alice: {Party: alice, Revealed: true}}

	rq.True(snapshotWith(false, false, sealed).CanReveal(alice))
	rq.False(snapshotWith(false, false, sealed).CanReveal(bob))
	rq.False(snapshotWith(false, false, revealed).CanReveal(alice))
	rq.False(snapshotWith(false, false, nil).CanReveal(alice))
}

func TestSnapshotCanFinalize(t *testing.T) {
	rq := require.New(t)

	allRevealed := map[value.Address]entity.Offer{
		alice: {Party: alice, Revealed: true},
		bob:   {Party: bob, Revealed: true},
	}

	rq.True(snapshotWith(false, true, allRevealed).CanFinalize())
	rq.False(snapshotWith(true, true, allRevealed).CanFinalize())
	rq.False(snapshotWith(false, false, allRevealed).CanFinalize())

	// Пустая сделка никогда не финализируема, даже если агрегат true.
	rq.False(snapshotWith(false, true, nil).CanFinalize())
}

func TestSnapshotDerivedAllRevealed(t *testing.T) {
	rq := require.New(t)

	// Нет офферов: предикат вакуумно ложен.
	rq.False(snapshotWith(false, false, nil).DerivedAllRevealed())

	mixed := map[value.Address]entity.Offer{
		alice: {Party: alice, Revealed: true},
		bob:   {Party: bob},
	}
	rq.False(snapshotWith(false, false, mixed).DerivedAllRevealed())

	all := map[value.Address]entity.Offer{
		alice: {Party: alice, Revealed: true},
		bob:   {Party: bob, Revealed: true},
	}
	rq.True(snapshotWith(false, false, all).DerivedAllRevealed())
}

func TestSnapshotIsolatedFromService(t *testing.T) {
	rq := require.New(t)
	ctx := context.Background()

	ledger := newFakeLedger(alice, bob)
	ledger.setOffer(alice, false)
	s := newTestService(t, ledger, &fakeEncryptor{})

	snap := s.Snapshot()
	snap.Offers[bob] = entity.Offer{Party: bob}
	snap.Parties[0] = value.Address{0xff}

	// Мутации копии не протекают в сервис.
	fresh := s.Snapshot()
	rq.Len(fresh.Offers, 1)
	rq.Equal(alice, fresh.Parties[0])

	_, err := s.Resync(ctx)
	rq.NoError(err)
}
