package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"secret_deal/internal/domain"
	"secret_deal/internal/domain/entity"
	"secret_deal/internal/domain/service/negotiation"
	"secret_deal/internal/domain/value"
	"secret_deal/internal/server"
	"secret_deal/pkg/errcodes"
	"secret_deal/pkg/rest"
)

var (
	alice = value.Address{0xa1}
	bob   = value.Address{0xb2}
)

type stubService struct {
	snap        negotiation.Snapshot
	createErr   error
	revealErr   error
	finalizeErr error

	revealedAs value.Address
	created    []rest.CreateOffer
}

func (s *stubService) Snapshot() negotiation.Snapshot {
	return s.snap
}

func (s *stubService) Self() value.Address {
	return alice
}

func (s *stubService) CreateOffer(_ context.Context, title, terms string, rawValue uint64) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, rest.CreateOffer{Title: title, Terms: terms, Value: rawValue})
	return nil
}

func (s *stubService) RevealOwnOffer(_ context.Context, party value.Address) error {
	if s.revealErr != nil {
		return s.revealErr
	}
	s.revealedAs = party
	return nil
}

func (s *stubService) FinalizeDeal(context.Context) error {
	return s.finalizeErr
}

func newTestRouter(svc *stubService) chi.Router {
	router := chi.NewRouter()
	server.NewServer(server.NewDealServer(svc)).RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router chi.Router, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestGetV1Deal(t *testing.T) {
	rq := require.New(t)

	svc := &stubService{snap: negotiation.Snapshot{
		DealID:  7,
		Version: 3,
		Parties: []value.Address{alice, bob},
		Offers: map[value.Address]entity.Offer{
			alice: {
				Party:          alice,
				EncryptedValue: value.HexBytes{0x11},
				Title:          "Supply",
				Terms:          "net 30, FOB destination",
				SubmittedAt:    1700000001,
				Revealed:       true,
			},
		},
		AllRevealed: false,
		Finalized:   false,
		SyncedAt:    time.Unix(1700000100, 0),
	}}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/v1/deal", "")
	rq.Equal(http.StatusOK, rec.Code)

	var deal rest.Deal
	rq.NoError(json.Unmarshal(rec.Body.Bytes(), &deal))
	rq.Equal(uint64(7), deal.DealID)
	rq.Equal(uint64(3), deal.Version)
	rq.Equal([]string{alice.Hex(), bob.Hex()}, deal.Parties)
	rq.Equal(int64(1700000100), deal.SyncedAt)
	rq.Len(deal.Offers, 1)

	offer := deal.Offers[alice.Hex()]
	rq.Equal("Supply", offer.Title)
	rq.True(offer.Revealed)

	// Зашифрованное значение никогда не попадает в ответ API.
	rq.NotContains(rec.Body.String(), "0x11")
	rq.NotContains(rec.Body.String(), "encryptedValue")
}

func TestGetV1DealBeforeFirstSync(t *testing.T) {
	rq := require.New(t)

	svc := &stubService{snap: negotiation.Snapshot{DealID: 7}}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/v1/deal", "")
	rq.Equal(http.StatusOK, rec.Code)

	var deal rest.Deal
	rq.NoError(json.Unmarshal(rec.Body.Bytes(), &deal))
	rq.Zero(deal.SyncedAt)
}

func TestPostV1DealOffer(t *testing.T) {
	rq := require.New(t)

	svc := &stubService{}
	body := `{"title":"Supply","terms":"net 30, FOB destination","value":1500}`

	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/v1/deal/offer", body)
	rq.Equal(http.StatusCreated, rec.Code)
	rq.Len(svc.created, 1)
	rq.Equal(uint64(1500), svc.created[0].Value)
}

func TestPostV1DealOfferBadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"broken json", `{"title":`},
		{"missing title", `{"terms":"net 30, FOB destination","value":1}`},
		{"short terms", `{"title":"T","terms":"short","value":1}`},
		{"value above range", `{"title":"T","terms":"net 30, FOB destination","value":4294967296}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rq := require.New(t)

			svc := &stubService{}
			rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/v1/deal/offer", tt.body)

			rq.Equal(http.StatusBadRequest, rec.Code)
			rq.Empty(svc.created)
		})
	}
}

func TestPostV1DealOfferStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"already submitted", domain.NewError(errcodes.AlreadySubmitted, "offer already submitted for this deal"), http.StatusConflict},
		{"finalized", domain.NewError(errcodes.PreconditionFailed, "deal is already finalized"), http.StatusUnprocessableEntity},
		{"encryption not ready", domain.NewError(errcodes.NotReady, "encryption context is error, not ready"), http.StatusUnprocessableEntity},
		{"deal not found", domain.NewError(errcodes.DealNotFound, "deal does not exist"), http.StatusNotFound},
		{"ledger failure", domain.NewError(errcodes.TransactionFailed, "execution reverted"), http.StatusInternalServerError},
	}

	body := `{"title":"Supply","terms":"net 30, FOB destination","value":1}`

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rq := require.New(t)

			svc := &stubService{createErr: tt.err}
			rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/v1/deal/offer", body)
			rq.Equal(tt.status, rec.Code)
		})
	}
}

func TestPostV1DealReveal(t *testing.T) {
	rq := require.New(t)

	svc := &stubService{}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/v1/deal/reveal", "")

	rq.Equal(http.StatusOK, rec.Code)
	// Reveal всегда идёт от имени действующего участника.
	rq.Equal(alice, svc.revealedAs)
}

func TestPostV1DealRevealErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"no offer", domain.NewError(errcodes.OfferNotSubmitted, "no sealed offer to reveal"), http.StatusUnprocessableEntity},
		{"already revealed", domain.NewError(errcodes.AlreadyRevealed, "offer is already revealed"), http.StatusConflict},
		{"foreign offer", domain.NewError(errcodes.Unauthorized, "you can only reveal your own offer"), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rq := require.New(t)

			svc := &stubService{revealErr: tt.err}
			rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/v1/deal/reveal", "")
			rq.Equal(tt.status, rec.Code)
		})
	}
}

func TestPostV1DealFinalize(t *testing.T) {
	rq := require.New(t)

	rec := doJSON(t, newTestRouter(&stubService{}), http.MethodPost, "/v1/deal/finalize", "")
	rq.Equal(http.StatusOK, rec.Code)
}

func TestPostV1DealFinalizeNotAllRevealed(t *testing.T) {
	rq := require.New(t)

	svc := &stubService{finalizeErr: domain.NewError(errcodes.PreconditionFailed, "not all offers are revealed")}
	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/v1/deal/finalize", "")

	rq.Equal(http.StatusUnprocessableEntity, rec.Code)

	var restErr struct {
		Code string `json:"code"`
	}
	rq.NoError(json.Unmarshal(rec.Body.Bytes(), &restErr))
	rq.Equal("PreconditionFailed", restErr.Code)
}
