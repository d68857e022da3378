package value

import (
	"github.com/ethereum/go-ethereum/common"

	"secret_deal/internal/domain"
	"secret_deal/pkg/errcodes"
)

// Address — идентификатор участника, фиксированной ширины (20 байт).
type Address = common.Address

func ParseAddress(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return Address{}, domain.NewError(errcodes.InvalidAddress, "not a hex account address")
	}

	return common.HexToAddress(s), nil
}

// SameParty сравнивает адреса без учёта регистра hex-представления.
func SameParty(a, b Address) bool {
	return a == b
}
