package persistence

import (
	"encoding/json"
	"time"

	"secret_deal/internal/domain/entity"
)

// agreementSchema — внутренняя структура для маппинга строки БД.
type agreementSchema struct {
	DealID     int64     `db:"deal_id"`
	Parties    []byte    `db:"parties"`
	Offers     []byte    `db:"offers"`
	ArchivedAt time.Time `db:"archived_at"`
}

func (s *agreementSchema) toDomain() (*entity.Agreement, error) {
	var parties []string
	if len(s.Parties) > 0 {
		if err := json.Unmarshal(s.Parties, &parties); err != nil {
			return nil, err
		}
	}

	var offers []entity.AgreementOffer
	if len(s.Offers) > 0 {
		if err := json.Unmarshal(s.Offers, &offers); err != nil {
			return nil, err
		}
	}

	return &entity.Agreement{
		DealID:     uint64(s.DealID),
		Parties:    parties,
		Offers:     offers,
		ArchivedAt: s.ArchivedAt,
	}, nil
}
