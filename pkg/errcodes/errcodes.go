package errcodes

import "git.appkode.ru/pub/go/failure"

const (
	InternalServerError failure.ErrorCode = "InternalServerError"
	TimeoutExceeded     failure.ErrorCode = "TimeoutExceeded"
	Forbidden           failure.ErrorCode = "Forbidden"
	ValidationError     failure.ErrorCode = "ValidationError"
	NotFound            failure.ErrorCode = "NotFound"

	// Коды протокола переговоров
	DealNotFound       failure.ErrorCode = "DealNotFound"       // Сделки с таким id нет в контракте
	OfferNotSubmitted  failure.ErrorCode = "OfferNotSubmitted"  // У участника ещё нет оффера
	AlreadySubmitted   failure.ErrorCode = "AlreadySubmitted"   // Повторный сабмит для той же пары (deal, party)
	AlreadyRevealed    failure.ErrorCode = "AlreadyRevealed"    // Повторный reveal того же оффера
	Unauthorized       failure.ErrorCode = "Unauthorized"       // Попытка действия от чужого имени
	PreconditionFailed failure.ErrorCode = "PreconditionFailed" // Finalize до allRevealed или повторный finalize
	TransactionFailed  failure.ErrorCode = "TransactionFailed"  // Прочие ошибки леджера/сети

	// Коды адаптера шифрования
	NotReady         failure.ErrorCode = "NotReady"         // Контекст шифрования не инициализирован
	EncryptionFailed failure.ErrorCode = "EncryptionFailed" // Сбой при создании шифротекста

	InvalidOfferValue failure.ErrorCode = "InvalidOfferValue" // Значение вне диапазона uint32
	InvalidOfferTitle failure.ErrorCode = "InvalidOfferTitle"
	InvalidOfferTerms failure.ErrorCode = "InvalidOfferTerms"
	InvalidAddress    failure.ErrorCode = "InvalidAddress"
	InvalidDealID     failure.ErrorCode = "InvalidDealID"
)
