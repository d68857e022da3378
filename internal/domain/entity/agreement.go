package entity

import "time"

// Agreement — локальная архивная запись финализированной сделки.
// Источником истины остаётся леджер; архив — производная копия для чтения.
type Agreement struct {
	DealID     uint64
	Parties    []string
	Offers     []AgreementOffer
	ArchivedAt time.Time
}

type AgreementOffer struct {
	Party       string `json:"party"`
	Title       string `json:"title"`
	Terms       string `json:"terms"`
	SubmittedAt int64  `json:"submittedAt"`
}
