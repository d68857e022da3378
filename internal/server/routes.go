package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"secret_deal/pkg/httpx/reply"
)

func (s Server) RegisterRoutes(r chi.Router) {
	r.Route("/", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/deal", func(r chi.Router) {
				r.Get("/", handler(s.getV1Deal))
				r.Post("/offer", handler(s.postV1DealOffer))
				r.Post("/reveal", handler(s.postV1DealReveal))
				r.Post("/finalize", handler(s.postV1DealFinalize))
			})
		})
	})
}

func handler(f func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			reply.Error(r.Context(), w, err)
		}
	}
}
