/**
 * @description
 * HTTP handlers for the owner-facing withdrawal endpoints: creating a
 * request, listing the owner's requests, and cancelling a pending one.
 *
 * Error contract: insufficient funds and validation failures come back as
 * 4xx with a clear reason; invalid-transition responses carry the current
 * authoritative status so the client can re-render without a second round
 * trip.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vendora/wallet-service/internal/app"
	"github.com/vendora/wallet-service/internal/domain"
	"github.com/vendora/wallet-service/internal/store"
)

// CreateWithdrawalHandler handles POST /wallet/withdrawals.
func (h *WalletHandlers) CreateWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.callerWalletID(w, r)
	if !ok {
		return
	}

	var req domain.CreateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=withdrawal_create outcome=reject reason=invalid_json err=%v", err)
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	created, err := h.service.RequestWithdrawal(r.Context(), walletID, req)
	if err != nil {
		h.writeWithdrawalError(w, walletID, "withdrawal_create", err, nil)
		return
	}

	log.Printf("level=info component=api endpoint=withdrawal_create outcome=accepted wallet_id=%s withdrawal_id=%s amount=%d", walletID, created.ID, created.Amount)
	h.writeJSON(w, http.StatusCreated, created)
}

// ListWithdrawalsHandler handles GET /wallet/withdrawals.
func (h *WalletHandlers) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.callerWalletID(w, r)
	if !ok {
		return
	}

	opts := domain.WithdrawalListOptions{
		Status: r.URL.Query().Get("status"),
		Page:   parseIntParam(r, "page", 1),
		Limit:  parseIntParam(r, "limit", 20),
	}
	requests, err := h.service.ListWithdrawals(r.Context(), walletID, opts)
	if err != nil {
		log.Printf("level=error component=api endpoint=withdrawal_list outcome=failed wallet_id=%s err=%v", walletID, err)
		h.writeError(w, http.StatusServiceUnavailable, "Ledger temporarily unavailable, please retry")
		return
	}
	if requests == nil {
		requests = []domain.WithdrawalRequest{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"withdrawals": requests,
		"page":        opts.Page,
		"limit":       opts.Limit,
	})
}

// GetWithdrawalHandler handles GET /wallet/withdrawals/{id}.
func (h *WalletHandlers) GetWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.callerWalletID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid withdrawal id")
		return
	}

	req, err := h.service.GetWithdrawalForWallet(r.Context(), walletID, withdrawalID)
	if err != nil {
		if errors.Is(err, store.ErrWithdrawalNotFound) {
			h.writeError(w, http.StatusNotFound, "Withdrawal not found")
			return
		}
		log.Printf("level=error component=api endpoint=withdrawal_get outcome=failed wallet_id=%s withdrawal_id=%s err=%v", walletID, withdrawalID, err)
		h.writeError(w, http.StatusServiceUnavailable, "Ledger temporarily unavailable, please retry")
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// CancelWithdrawalHandler handles POST /wallet/withdrawals/{id}/cancel.
// Owner-only; releases the held funds and moves the request to cancelled.
func (h *WalletHandlers) CancelWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	walletID, ok := h.callerWalletID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid withdrawal id")
		return
	}

	resolved, err := h.service.CancelWithdrawal(r.Context(), withdrawalID, walletID)
	if err != nil {
		h.writeWithdrawalError(w, walletID, "withdrawal_cancel", err, resolved)
		return
	}

	log.Printf("level=info component=api endpoint=withdrawal_cancel outcome=accepted wallet_id=%s withdrawal_id=%s", walletID, withdrawalID)
	h.writeJSON(w, http.StatusOK, resolved)
}

// writeWithdrawalError maps workflow errors onto the HTTP error contract.
// current, when non-nil, is the authoritative request state included in
// invalid-transition responses.
func (h *WalletHandlers) writeWithdrawalError(w http.ResponseWriter, walletID uuid.UUID, endpoint string, err error, current *domain.WithdrawalRequest) {
	log.Printf("level=warn component=api endpoint=%s outcome=failed wallet_id=%s err=%v", endpoint, walletID, err)
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, "Insufficient available balance")
	case errors.Is(err, store.ErrInvalidWithdrawalState):
		status := ""
		if current != nil {
			status = current.Status
		}
		h.writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "Withdrawal is no longer pending",
			"status": status,
		})
	case errors.Is(err, store.ErrWithdrawalNotFound):
		h.writeError(w, http.StatusNotFound, "Withdrawal not found")
	case errors.Is(err, store.ErrWithdrawMethodNotFound), errors.Is(err, app.ErrMethodDisabled):
		h.writeError(w, http.StatusBadRequest, "Unknown or disabled withdraw method")
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrAmountBelowMinimum),
		errors.Is(err, app.ErrAmountAboveMaximum):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "Too many withdrawal requests, please try again later")
	case errors.Is(err, app.ErrLedgerUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "Ledger temporarily unavailable, please retry")
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
