package entity

import "secret_deal/internal/domain/value"

// Offer — запечатанное предложение одного участника внутри сделки.
// Шифруется только числовое значение; title и terms хранятся в леджере
// открыто — это осознанная асимметрия схемы, менять её нельзя без смены ABI.
type Offer struct {
	Party          value.Address
	EncryptedValue value.HexBytes // хэндл шифротекста, bytes32
	Title          string
	Terms          string
	SubmittedAt    int64
	Revealed       bool
}
