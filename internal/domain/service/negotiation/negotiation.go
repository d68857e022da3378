package negotiation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"secret_deal/internal/domain"
	"secret_deal/internal/domain/entity"
	"secret_deal/internal/domain/value"
	"secret_deal/pkg/errcodes"
)

const minTermsLen = 10

type Ledger interface {
	GetDeal(ctx context.Context, dealID uint64) (entity.Deal, error)
	GetOfferByParty(ctx context.Context, dealID uint64, party value.Address) (entity.Offer, bool, error)
	AreAllOffersRevealed(ctx context.Context, dealID uint64) (bool, error)
	SubmitOffer(ctx context.Context, dealID uint64, ct value.Ciphertext, title, terms string) error
	RevealOffer(ctx context.Context, dealID uint64) error
	FinalizeDeal(ctx context.Context, dealID uint64) error
}

type Encryptor interface {
	Encrypt(ctx context.Context, val value.OfferValue) (value.Ciphertext, error)
}

// Service — машина состояний переговоров для одной сделки и одного
// действующего участника. Кэш с ресинхронизацией, не источник истины:
// после каждой успешной записи состояние целиком перечитывается из леджера.
type Service struct {
	ledger    Ledger
	encryptor Encryptor
	dealID    uint64
	self      value.Address

	mu       sync.Mutex
	snapshot Snapshot

	inflight map[string]bool // single-flight на каждый тип интента
}

func NewService(
	ledger Ledger,
	encryptor Encryptor,
	dealID uint64,
	self value.Address,
) *Service {
	return &Service{
		ledger:    ledger,
		encryptor: encryptor,
		dealID:    dealID,
		self:      self,
		snapshot: Snapshot{
			DealID: dealID,
			Offers: map[value.Address]entity.Offer{},
		},
		inflight: map[string]bool{},
	}
}

func (s *Service) Self() value.Address {
	return s.self
}

// Snapshot возвращает текущий снапшот по значению.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot.clone()
}

// CreateOffer валидирует, шифрует и отправляет запечатанный оффер,
// затем полностью ресинхронизируется. Валидация и шифрование происходят
// до какого-либо обращения к леджеру.
func (s *Service) CreateOffer(ctx context.Context, title, terms string, rawValue uint64) error {
	release, err := s.acquire("submit")
	if err != nil {
		return err
	}
	defer release()

	if err := validateOffer(title, terms); err != nil {
		return err
	}

	offerValue, err := value.ParseOfferValue(rawValue)
	if err != nil {
		return err
	}

	if snap := s.Snapshot(); !snap.CanSubmit(s.self) {
		if snap.Finalized {
			return domain.NewError(errcodes.PreconditionFailed, "deal is already finalized")
		}
		return domain.NewError(errcodes.AlreadySubmitted, "offer already submitted for this deal")
	}

	ct, err := s.encryptor.Encrypt(ctx, offerValue)
	if err != nil {
		return fmt.Errorf("encryptor.Encrypt: %w", err)
	}

	if err := s.ledger.SubmitOffer(ctx, s.dealID, ct, title, terms); err != nil {
		return fmt.Errorf("ledger.SubmitOffer: %w", err)
	}

	if _, err := s.Resync(ctx); err != nil {
		logger(ctx).Error("resync after submit failed", "error", err)
	}

	return nil
}

// RevealOwnOffer раскрывает собственный запечатанный оффер. Чужой оффер
// отклоняется локально, до транзакции; леджер проверяет то же самое ещё раз.
func (s *Service) RevealOwnOffer(ctx context.Context, party value.Address) error {
	release, err := s.acquire("reveal")
	if err != nil {
		return err
	}
	defer release()

	if !value.SameParty(party, s.self) {
		return domain.NewError(errcodes.Unauthorized, "you can only reveal your own offer")
	}

	snap := s.Snapshot()

	offer, has := snap.OfferFor(s.self)
	if !has {
		return domain.NewError(errcodes.OfferNotSubmitted, "no sealed offer to reveal")
	}

	if offer.Revealed {
		return domain.NewError(errcodes.AlreadyRevealed, "offer is already revealed")
	}

	if err := s.ledger.RevealOffer(ctx, s.dealID); err != nil {
		return fmt.Errorf("ledger.RevealOffer: %w", err)
	}

	if _, err := s.Resync(ctx); err != nil {
		logger(ctx).Error("resync after reveal failed", "error", err)
	}

	return nil
}

// FinalizeDeal записывает итоговое соглашение. Разрешено любому участнику,
// но только когда все офферы раскрыты и сделка ещё не финализирована.
func (s *Service) FinalizeDeal(ctx context.Context) error {
	release, err := s.acquire("finalize")
	if err != nil {
		return err
	}
	defer release()

	snap := s.Snapshot()

	if snap.Finalized {
		return domain.NewError(errcodes.PreconditionFailed, "deal is already finalized")
	}

	if !snap.CanFinalize() {
		return domain.NewError(errcodes.PreconditionFailed, "not all offers are revealed")
	}

	if err := s.ledger.FinalizeDeal(ctx, s.dealID); err != nil {
		return fmt.Errorf("ledger.FinalizeDeal: %w", err)
	}

	if _, err := s.Resync(ctx); err != nil {
		logger(ctx).Error("resync after finalize failed", "error", err)
	}

	return nil
}

// Resync целиком перечитывает состояние сделки: метаданные, агрегатный
// предикат и оффер каждого участника. Неудача чтения отдельного оффера
// логируется, участник пропускается; неудача чтения сделки — ошибка всего
// цикла.
func (s *Service) Resync(ctx context.Context) (Snapshot, error) {
	deal, err := s.ledger.GetDeal(ctx, s.dealID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("ledger.GetDeal: %w", err)
	}

	if !deal.Exists() {
		return Snapshot{}, domain.NewError(errcodes.DealNotFound, "deal does not exist")
	}

	allRevealed, err := s.ledger.AreAllOffersRevealed(ctx, s.dealID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("ledger.AreAllOffersRevealed: %w", err)
	}

	offers := make(map[value.Address]entity.Offer, len(deal.Parties))

	for _, party := range deal.Parties {
		offer, has, err := s.ledger.GetOfferByParty(ctx, s.dealID, party)
		if err != nil {
			logger(ctx).Error("failed to load offer, skipping party",
				"party", party.Hex(),
				"error", err,
			)
			continue
		}

		if has {
			offers[party] = offer
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = Snapshot{
		DealID:      s.dealID,
		Version:     s.snapshot.Version + 1,
		Parties:     deal.Parties,
		Offers:      offers,
		AllRevealed: allRevealed,
		Finalized:   deal.Finalized,
		SyncedAt:    time.Now(),
	}

	return s.snapshot.clone(), nil
}

// acquire берёт single-flight замок интента: пока транзакция в полёте,
// повторный вход того же интента отклоняется вместо постановки в очередь.
func (s *Service) acquire(intent string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight[intent] {
		return nil, domain.NewError(
			errcodes.PreconditionFailed,
			fmt.Sprintf("%s transaction already in flight", intent),
		)
	}

	s.inflight[intent] = true

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.inflight[intent] = false
	}, nil
}

func validateOffer(title, terms string) error {
	if strings.TrimSpace(title) == "" {
		return domain.NewError(errcodes.InvalidOfferTitle, "offer title is required")
	}

	if len(strings.TrimSpace(terms)) < minTermsLen {
		return domain.NewError(
			errcodes.InvalidOfferTerms,
			fmt.Sprintf("offer terms must be at least %d characters", minTermsLen),
		)
	}

	return nil
}
