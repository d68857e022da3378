package server

import (
	"git.appkode.ru/pub/go/failure"

	"secret_deal/internal/domain"
	"secret_deal/internal/domain/service/negotiation"
	"secret_deal/internal/domain/value"
	"secret_deal/pkg/errcodes"
	"secret_deal/pkg/lox"
	"secret_deal/pkg/rest"
)

func newRESTDeal(snap negotiation.Snapshot) rest.Deal {
	offers := make(map[string]rest.Offer, len(snap.Offers))

	for party, offer := range snap.Offers {
		offers[party.Hex()] = rest.Offer{
			Party:       party.Hex(),
			Title:       offer.Title,
			Terms:       offer.Terms,
			Revealed:    offer.Revealed,
			SubmittedAt: offer.SubmittedAt,
		}
	}

	var syncedAt int64
	if !snap.SyncedAt.IsZero() {
		syncedAt = snap.SyncedAt.Unix()
	}

	return rest.Deal{
		DealID:  snap.DealID,
		Version: snap.Version,
		Parties: lox.Map(snap.Parties, func(p value.Address) string {
			return p.Hex()
		}),
		Offers:      offers,
		AllRevealed: snap.AllRevealed,
		Finalized:   snap.Finalized,
		SyncedAt:    syncedAt,
	}
}

// asFailure переводит доменный код ошибки в семейство failure, по которому
// reply.Error выбирает HTTP-статус.
func asFailure(err error) error {
	code, ok := domain.GetCode(err)
	if !ok {
		return err
	}

	switch code {
	case errcodes.ValidationError,
		errcodes.InvalidOfferValue,
		errcodes.InvalidOfferTitle,
		errcodes.InvalidOfferTerms,
		errcodes.InvalidAddress,
		errcodes.InvalidDealID:
		return failure.NewInvalidArgumentErrorFromError(err, failure.WithCode(code))
	case errcodes.DealNotFound, errcodes.NotFound:
		return failure.NewNotFoundErrorFromError(err, failure.WithCode(code))
	case errcodes.Unauthorized, errcodes.Forbidden:
		return failure.NewForbiddenErrorFromError(err, failure.WithCode(code))
	case errcodes.AlreadySubmitted, errcodes.AlreadyRevealed:
		return failure.NewConflictErrorFromError(err, failure.WithCode(code))
	case errcodes.PreconditionFailed, errcodes.OfferNotSubmitted, errcodes.NotReady:
		return failure.NewUnprocessableEntityErrorFromError(err, failure.WithCode(code))
	default:
		return err
	}
}
