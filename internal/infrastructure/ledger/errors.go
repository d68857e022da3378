package ledger

import (
	"strings"

	"git.appkode.ru/pub/go/failure"

	"secret_deal/internal/domain"
	"secret_deal/pkg/contextx"
	"secret_deal/pkg/errcodes"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

// Таблица revert-строк контракта. Дубликат сабмита обязан распознаваться
// отдельно от остальных сбоев: это не-ретраябельная ситуация с отдельным
// сообщением для пользователя.
var revertCodes = []struct { //nolint:gochecknoglobals
	substr string
	code   failure.ErrorCode
}{
	{"Offer already submitted", errcodes.AlreadySubmitted},
	{"already submitted", errcodes.AlreadySubmitted},
	{"Offer already revealed", errcodes.AlreadyRevealed},
	{"No offer submitted", errcodes.Unauthorized},
	{"Not the offer owner", errcodes.Unauthorized},
	{"Not a deal party", errcodes.Unauthorized},
	{"Not all offers revealed", errcodes.PreconditionFailed},
	{"No offers to finalize", errcodes.PreconditionFailed},
	{"Deal already finalized", errcodes.PreconditionFailed},
	{"Deal does not exist", errcodes.DealNotFound},
}

// classify переводит ошибку леджера в доменную. Неизвестные причины
// считаются generic-сбоем транзакции: операция не применена, повтор
// возможен из того же пред-состояния, но не автоматический.
func classify(err error, method string) error {
	msg := err.Error()

	for _, rc := range revertCodes {
		if strings.Contains(msg, rc.substr) {
			return domain.WrapError(err, rc.code, method)
		}
	}

	return domain.WrapError(err, errcodes.TransactionFailed, method)
}
