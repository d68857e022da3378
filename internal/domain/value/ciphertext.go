package value

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"secret_deal/internal/domain"
	"secret_deal/pkg/errcodes"
)

// HandleLen — ширина хэндла шифротекста в байтах (bytes32 в контракте).
const HandleLen = 32

// HexBytes — непрозрачные байты, на транспортной границе представленные
// 0x-hex строкой. Конвертация тотальна и обратима.
type HexBytes []byte

func (b HexBytes) String() string {
	return hexutil.Encode(b)
}

func (b HexBytes) MarshalJSON() ([]byte, error) {
	return []byte(`"` + b.String() + `"`), nil
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var raw hexutil.Bytes
	if err := raw.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("hexutil.UnmarshalJSON: %w", err)
	}

	*b = HexBytes(raw)

	return nil
}

func ParseHexBytes(s string) (HexBytes, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, domain.WrapError(err, errcodes.ValidationError, "not a 0x-hex string")
	}

	return HexBytes(raw), nil
}

// Ciphertext — результат работы адаптера шифрования: хэндл зашифрованного
// значения и доказательство корректности. Передаётся в леджер байт-в-байт.
type Ciphertext struct {
	Handle HexBytes
	Proof  HexBytes
}

// Handle32 возвращает хэндл в канонической фиксированной ширине леджера.
func (c Ciphertext) Handle32() ([HandleLen]byte, error) {
	var out [HandleLen]byte

	if len(c.Handle) != HandleLen {
		return out, domain.NewError(
			errcodes.EncryptionFailed,
			fmt.Sprintf("ciphertext handle must be %d bytes, got %d", HandleLen, len(c.Handle)),
		)
	}

	copy(out[:], c.Handle)

	return out, nil
}
