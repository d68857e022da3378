package value

import (
	"fmt"

	"secret_deal/internal/domain"
	"secret_deal/pkg/errcodes"
)

// MaxOfferValue — верхняя граница euint32 (2^32 − 1).
const MaxOfferValue = 4294967295

// OfferValue — числовое условие оффера. Единственное поле, которое
// шифруется перед отправкой в леджер.
type OfferValue uint32

func ParseOfferValue(raw uint64) (OfferValue, error) {
	if raw > MaxOfferValue {
		return 0, domain.NewError(
			errcodes.InvalidOfferValue,
			fmt.Sprintf("offer value must be at most %d", uint64(MaxOfferValue)),
		)
	}

	return OfferValue(raw), nil
}

func (v OfferValue) Uint32() uint32 {
	return uint32(v)
}
