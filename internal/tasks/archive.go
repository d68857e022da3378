package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"

	"secret_deal/internal/domain/entity"
	"secret_deal/internal/domain/service/negotiation"
	"secret_deal/pkg/contextx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

const TypeAgreementArchive = "agreement:archive"

const QueueDefault = "default"

type archivePayload struct {
	DealID uint64 `json:"dealId"`
}

// NewArchiveTask собирает задачу на архивацию финализированной сделки.
func NewArchiveTask(dealID uint64) (*asynq.Task, error) {
	payload, err := json.Marshal(archivePayload{DealID: dealID})
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}

	return asynq.NewTask(TypeAgreementArchive, payload, asynq.MaxRetry(5)), nil
}

type agreementRepository interface {
	Create(ctx context.Context, agreement *entity.Agreement) error
	Exists(ctx context.Context, dealID uint64) (bool, error)
}

type snapshotSource interface {
	Snapshot() negotiation.Snapshot
	Resync(ctx context.Context) (negotiation.Snapshot, error)
}

// ArchiveHandler переносит раскрытое содержимое финализированной сделки в
// локальный архив. Источник истины — леджер: перед записью состояние
// перечитывается, а не берётся из кэша.
type ArchiveHandler struct {
	negotiation snapshotSource
	repo        agreementRepository
}

func NewArchiveHandler(negotiationService snapshotSource, repo agreementRepository) ArchiveHandler {
	return ArchiveHandler{
		negotiation: negotiationService,
		repo:        repo,
	}
}

func (h ArchiveHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload archivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	exists, err := h.repo.Exists(ctx, payload.DealID)
	if err != nil {
		return fmt.Errorf("repo.Exists: %w", err)
	}

	if exists {
		return nil
	}

	snap, err := h.negotiation.Resync(ctx)
	if err != nil {
		return fmt.Errorf("negotiation.Resync: %w", err)
	}

	if !snap.Finalized {
		// Задача обогнала леджер; ретрай придёт позже.
		return fmt.Errorf("deal %d is not finalized yet", payload.DealID)
	}

	agreement := entity.Agreement{
		DealID:  payload.DealID,
		Parties: make([]string, 0, len(snap.Parties)),
		Offers:  make([]entity.AgreementOffer, 0, len(snap.Offers)),
	}

	for _, party := range snap.Parties {
		agreement.Parties = append(agreement.Parties, party.Hex())

		offer, ok := snap.OfferFor(party)
		if !ok {
			continue
		}

		agreement.Offers = append(agreement.Offers, entity.AgreementOffer{
			Party:       party.Hex(),
			Title:       offer.Title,
			Terms:       offer.Terms,
			SubmittedAt: offer.SubmittedAt,
		})
	}

	if err := h.repo.Create(ctx, &agreement); err != nil {
		return fmt.Errorf("repo.Create: %w", err)
	}

	logger(ctx).Info("agreement archived",
		"deal-id", payload.DealID,
		"offers", len(agreement.Offers),
	)

	return nil
}
