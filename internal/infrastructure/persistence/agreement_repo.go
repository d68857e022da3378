package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"secret_deal/internal/domain"
	"secret_deal/internal/domain/entity"
	"secret_deal/pkg/errcodes"
)

type AgreementRepository struct {
	db *sqlx.DB
}

// NewAgreementRepository создаёт новый экземпляр репозитория.
func NewAgreementRepository(db *sqlx.DB) *AgreementRepository {
	return &AgreementRepository{db: db}
}

// withTx выполняет функцию в транзакции.
func (r *AgreementRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return domain.WrapError(
				fmt.Errorf("%w; rollback: %v", err, rbErr),
				errcodes.InternalServerError,
				"transaction failed",
			)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(err, errcodes.InternalServerError, "failed to commit")
	}

	return nil
}

// Create сохраняет архивную запись. Идемпотентен по deal_id: повторная
// архивация той же сделки ничего не меняет.
func (r *AgreementRepository) Create(ctx context.Context, agreement *entity.Agreement) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		partiesBytes, err := json.Marshal(agreement.Parties)
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal parties")
		}

		offersBytes, err := json.Marshal(agreement.Offers)
		if err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to marshal offers")
		}

		archivedAt := agreement.ArchivedAt
		if archivedAt.IsZero() {
			archivedAt = time.Now()
		}

		query := `
			INSERT INTO agreements (deal_id, parties, offers, archived_at)
			VALUES (:deal_id, :parties, :offers, :archived_at)
			ON CONFLICT (deal_id) DO NOTHING`

		params := map[string]any{
			"deal_id":     agreement.DealID,
			"parties":     partiesBytes,
			"offers":      offersBytes,
			"archived_at": archivedAt,
		}

		if _, err := tx.NamedExecContext(ctx, query, params); err != nil {
			return domain.WrapError(err, errcodes.InternalServerError, "failed to insert agreement")
		}

		return nil
	})
}

// GetByDealID возвращает архивную запись сделки.
func (r *AgreementRepository) GetByDealID(ctx context.Context, dealID uint64) (*entity.Agreement, error) {
	query := `
		SELECT deal_id, parties, offers, archived_at
		FROM agreements
		WHERE deal_id = $1`

	var schema agreementSchema
	if err := r.db.GetContext(ctx, &schema, query, dealID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(errcodes.NotFound, "agreement not found")
		}
		return nil, domain.WrapError(err, errcodes.InternalServerError, "failed to get agreement")
	}

	return schema.toDomain()
}

func (r *AgreementRepository) Exists(ctx context.Context, dealID uint64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM agreements WHERE deal_id = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, dealID); err != nil {
		return false, domain.WrapError(err, errcodes.InternalServerError, "failed to check agreement existence")
	}

	return exists, nil
}
