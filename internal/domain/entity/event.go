package entity

import "secret_deal/internal/domain/value"

type EventKind string

const (
	EventOfferSubmitted EventKind = "offer_submitted"
	EventOfferRevealed  EventKind = "offer_revealed"
	EventAllRevealed    EventKind = "all_revealed"
	EventDealFinalized  EventKind = "deal_finalized"
)

// NegotiationEvent — переход состояния, замеченный при ресинхронизации.
type NegotiationEvent struct {
	Kind    EventKind
	DealID  uint64
	Party   value.Address // нулевой для событий уровня сделки
	Title   string        // заполняется после reveal
	Version uint64        // версия снапшота, в которой переход замечен
}

// Key — стабильный ключ для дедупликации уведомлений.
func (e NegotiationEvent) Key() string {
	return string(e.Kind) + ":" + e.Party.Hex()
}
