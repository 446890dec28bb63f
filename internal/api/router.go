/**
 * @description
 * This file sets up the HTTP router for the wallet-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// WalletRoutes creates and returns a new router for the wallet service.
func WalletRoutes(h *WalletHandlers, auth AuthOptions) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Owner-facing wallet endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(auth))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", h.GetBalanceHandler)
			r.Get("/transactions", h.ListTransactionsHandler)
			r.Get("/transactions/{id}", h.GetTransactionHandler)
			r.Get("/withdraw-methods", h.ListWithdrawMethodsHandler)

			r.Post("/withdrawals", h.CreateWithdrawalHandler)
			r.Get("/withdrawals", h.ListWithdrawalsHandler)
			r.Get("/withdrawals/{id}", h.GetWithdrawalHandler)
			r.Post("/withdrawals/{id}/cancel", h.CancelWithdrawalHandler)
		})
	})

	// Admin endpoints: withdrawal decisions and manual top-ups.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(auth))
		r.Use(AdminOnly)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/withdrawals", h.ListPendingWithdrawalsHandler)
			r.Patch("/withdrawals/{id}/approve", h.ApproveWithdrawalHandler)
			r.Patch("/withdrawals/{id}/reject", h.RejectWithdrawalHandler)
			r.Post("/wallets/{ownerID}/credit", h.AdminCreditHandler)
		})
	})

	return r
}
