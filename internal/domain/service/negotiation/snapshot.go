package negotiation

import (
	"time"

	"secret_deal/internal/domain/entity"
	"secret_deal/internal/domain/value"
)

// Snapshot — неизменяемый срез состояния сделки, каким его в последний раз
// видел леджер. Передаётся потребителям по значению; мутаций нет — каждая
// ресинхронизация производит новый снапшот со следующей версией.
type Snapshot struct {
	DealID      uint64
	Version     uint64
	Parties     []value.Address
	Offers      map[value.Address]entity.Offer
	AllRevealed bool
	Finalized   bool
	SyncedAt    time.Time
}

// OfferFor возвращает оффер участника, если он есть.
func (s Snapshot) OfferFor(party value.Address) (entity.Offer, bool) {
	offer, ok := s.Offers[party]
	return offer, ok
}

// Все предикаты легальности действий централизованы здесь: ни презентация,
// ни адаптеры не выводят их заново.

// CanSubmit: у пары (deal, party) ещё нет оффера и сделка не финализирована.
func (s Snapshot) CanSubmit(party value.Address) bool {
	if s.Finalized {
		return false
	}

	_, has := s.Offers[party]

	return !has
}

// CanReveal: участник владеет запечатанным (ещё не раскрытым) оффером.
func (s Snapshot) CanReveal(party value.Address) bool {
	offer, ok := s.Offers[party]

	return ok && !offer.Revealed
}

// CanFinalize: есть хотя бы один оффер, все раскрыты, сделка не финализирована.
func (s Snapshot) CanFinalize() bool {
	return s.AllRevealed && len(s.Offers) > 0 && !s.Finalized
}

// DerivedAllRevealed пересчитывает агрегатный предикат локально. Леджер
// остаётся авторитетом; локальное значение служит кросс-проверкой в тестах.
func (s Snapshot) DerivedAllRevealed() bool {
	if len(s.Offers) == 0 {
		return false
	}

	for _, offer := range s.Offers {
		if !offer.Revealed {
			return false
		}
	}

	return true
}

func (s Snapshot) clone() Snapshot {
	out := s

	out.Parties = make([]value.Address, len(s.Parties))
	copy(out.Parties, s.Parties)

	out.Offers = make(map[value.Address]entity.Offer, len(s.Offers))
	for party, offer := range s.Offers {
		out.Offers[party] = offer
	}

	return out
}
