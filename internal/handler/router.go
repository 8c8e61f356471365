package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/marketplace/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware маркетплейса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}

	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/register", h.Register)
		r.Post("/user/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/user", func(r chi.Router) {
				r.Post("/profile", h.CreateProfile)
				r.Put("/profile", h.UpdateProfile)
				r.Get("/profile", h.GetProfile)

				r.Put("/location", h.ToggleLocation)
				r.Get("/location", h.GetLocation)
			})

			r.Post("/stores", h.CreateStore)

			r.Route("/requests", func(r chi.Router) {
				r.Post("/", h.CreateRequest)
				r.Get("/", h.ListRequests)

				r.Route("/{requestID}", func(r chi.Router) {
					r.Get("/", h.GetRequest)
					r.Delete("/", h.DeleteRequest)

					r.Post("/offers", h.CreateOffer)
					r.Get("/offers", h.ListOffers)
					r.Post("/offers/{offerID}/accept", h.AcceptOffer)

					r.Post("/pay", h.PayForRequest)
					r.Post("/complete", h.CompleteRequest)
					r.Get("/payments", h.ListPayments)
				})
			})

			r.Get("/wallet", h.GetWallet)
			r.Post("/wallet/deposit", h.Deposit)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
