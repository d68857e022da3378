package entity

import "secret_deal/internal/domain/value"

// Deal — верхнеуровневая единица переговоров. Создаётся вне этого сервиса;
// здесь она только читается и один раз финализируется.
type Deal struct {
	ID        uint64
	Parties   []value.Address // порядок фиксирован контрактом
	CreatedAt int64           // unix-секунды; 0 значит «сделки нет»
	Finalized bool
}

// Exists отличает «нет сделки» от «сделка без участников»: контракт
// всегда проставляет CreatedAt при создании.
func (d Deal) Exists() bool {
	return d.CreatedAt != 0
}
