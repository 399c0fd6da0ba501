package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/webbangiay/voucher-service/internal/api/handlers"
	"github.com/webbangiay/voucher-service/internal/api/middleware"
	"github.com/webbangiay/voucher-service/internal/cache"
	"github.com/webbangiay/voucher-service/internal/engine"
	"github.com/webbangiay/voucher-service/internal/repository"
	"github.com/webbangiay/voucher-service/internal/service"
)

type Deps struct {
	Service   *service.VoucherService
	Vouchers  *repository.VoucherRepo
	Usage     *repository.UsageRepo
	Evaluator *engine.Evaluator
	Cache     *cache.VoucherCache
}

// NewRouter builds the HTTP router for the voucher-service.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)

	voucherHandler := handlers.NewVoucherHandler(d.Service)
	adminHandler := handlers.NewAdminHandler(d.Vouchers, d.Usage, d.Evaluator, d.Cache)

	// Public checkout endpoints
	r.Route("/vouchers", func(r chi.Router) {
		r.Get("/available", voucherHandler.Available)
		r.Post("/validate", voucherHandler.Validate)
		r.Post("/apply", voucherHandler.Apply)
	})

	// Admin back-office
	r.Route("/admin/vouchers", func(r chi.Router) {
		r.Get("/", adminHandler.List)
		r.Post("/", adminHandler.Create)
		r.Get("/history/customer/{customerID}", adminHandler.CustomerHistory)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", adminHandler.Get)
			r.Put("/", adminHandler.Update)
			r.Delete("/", adminHandler.Delete)
			r.Patch("/toggle", adminHandler.Toggle)
			r.Get("/usage-history", adminHandler.UsageHistory)
		})
	})

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
