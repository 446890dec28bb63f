/**
 * @description
 * This file contains the HTTP handlers for the wallet-service's read
 * endpoints: balance, transaction history, and withdraw-method listing.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http, strconv, time: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vendora/wallet-service/internal/app"
	"github.com/vendora/wallet-service/internal/domain"
	"github.com/vendora/wallet-service/internal/store"
)

// WalletHandlers holds the application service that handlers will use.
type WalletHandlers struct {
	service *app.Service
}

// NewWalletHandlers creates a new instance of WalletHandlers.
func NewWalletHandlers(service *app.Service) *WalletHandlers {
	return &WalletHandlers{service: service}
}

// callerWalletID resolves the authenticated owner's wallet id from the
// request context. The owner id is the wallet id (one wallet per user).
func (h *WalletHandlers) callerWalletID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ownerIDStr, ok := GetOwnerID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return uuid.Nil, false
	}
	walletID, err := uuid.Parse(ownerIDStr)
	if err != nil {
		log.Printf("level=warn component=api outcome=reject reason=invalid_user_id owner_id=%s", ownerIDStr)
		http.Error(w, "Invalid user ID format", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return walletID, true
}

// GetBalanceHandler handles GET /wallet/balance.
func (h *WalletHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.callerWalletID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetBalance(r.Context(), walletID)
	if err != nil {
		log.Printf("level=error component=api endpoint=balance outcome=failed wallet_id=%s err=%v", walletID, err)
		if errors.Is(err, app.ErrLedgerUnavailable) {
			h.writeError(w, http.StatusServiceUnavailable, "Ledger temporarily unavailable, please retry")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// ListTransactionsHandler handles GET /wallet/transactions.
func (h *WalletHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.callerWalletID(w, r)
	if !ok {
		return
	}

	opts := domain.TransactionListOptions{
		Type:  r.URL.Query().Get("type"),
		Page:  parseIntParam(r, "page", 1),
		Limit: parseIntParam(r, "limit", 20),
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid 'from' timestamp, expected RFC3339")
			return
		}
		opts.DateFrom = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid 'to' timestamp, expected RFC3339")
			return
		}
		opts.DateTo = &t
	}

	transactions, err := h.service.ListTransactions(r.Context(), walletID, opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=transactions outcome=failed wallet_id=%s err=%v", walletID, err)
		h.writeError(w, http.StatusServiceUnavailable, "Ledger temporarily unavailable, please retry")
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"page":         opts.Page,
		"limit":        opts.Limit,
	})
}

// GetTransactionHandler handles GET /wallet/transactions/{id}.
func (h *WalletHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.callerWalletID(w, r)
	if !ok {
		return
	}

	transactionID := chi.URLParam(r, "id")
	record, err := h.service.GetTransactionForWallet(r.Context(), walletID, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		log.Printf("level=error component=api endpoint=transaction_get outcome=failed wallet_id=%s transaction_id=%s err=%v", walletID, transactionID, err)
		h.writeError(w, http.StatusServiceUnavailable, "Ledger temporarily unavailable, please retry")
		return
	}
	h.writeJSON(w, http.StatusOK, record)
}

// ListWithdrawMethodsHandler handles GET /wallet/withdraw-methods.
func (h *WalletHandlers) ListWithdrawMethodsHandler(w http.ResponseWriter, r *http.Request) {
	methods, err := h.service.ListWithdrawMethods(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=withdraw_methods outcome=failed err=%v", err)
		h.writeError(w, http.StatusServiceUnavailable, "Ledger temporarily unavailable, please retry")
		return
	}
	if methods == nil {
		methods = []domain.WithdrawMethod{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"methods": methods})
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// writeJSON is a helper for writing JSON responses.
func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
