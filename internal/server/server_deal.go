package server

import (
	"context"
	"fmt"
	"net/http"

	"secret_deal/internal/domain/service/negotiation"
	"secret_deal/internal/domain/value"
	"secret_deal/pkg/httpx/reply"
	"secret_deal/pkg/httpx/req"
	"secret_deal/pkg/rest"
)

type negotiationService interface {
	Snapshot() negotiation.Snapshot
	Self() value.Address
	CreateOffer(ctx context.Context, title, terms string, rawValue uint64) error
	RevealOwnOffer(ctx context.Context, party value.Address) error
	FinalizeDeal(ctx context.Context) error
}

type DealServer struct {
	negotiationService negotiationService
}

func NewDealServer(negotiationService negotiationService) DealServer {
	return DealServer{
		negotiationService: negotiationService,
	}
}

func (s DealServer) getV1Deal(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	reply.JSON(ctx, w, http.StatusOK, newRESTDeal(s.negotiationService.Snapshot()))

	return nil
}

func (s DealServer) postV1DealOffer(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var request rest.CreateOffer

	if err := req.Read(r, &request); err != nil {
		return fmt.Errorf("req.Read: %w", err)
	}

	if err := s.negotiationService.CreateOffer(ctx, request.Title, request.Terms, request.Value); err != nil {
		return asFailure(fmt.Errorf("negotiationService.CreateOffer: %w", err))
	}

	reply.Created(w)

	return nil
}

func (s DealServer) postV1DealReveal(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	self := s.negotiationService.Self()

	if err := s.negotiationService.RevealOwnOffer(ctx, self); err != nil {
		return asFailure(fmt.Errorf("negotiationService.RevealOwnOffer: %w", err))
	}

	reply.OK(w)

	return nil
}

func (s DealServer) postV1DealFinalize(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	if err := s.negotiationService.FinalizeDeal(ctx); err != nil {
		return asFailure(fmt.Errorf("negotiationService.FinalizeDeal: %w", err))
	}

	reply.OK(w)

	return nil
}
