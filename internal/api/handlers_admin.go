/**
 * @description
 * HTTP handlers for the admin-facing endpoints: the pending withdrawal
 * review queue, the approve/reject decisions, and manual wallet top-ups.
 * All of these sit behind the AdminOnly guard.
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
)

// ListPendingWithdrawalsHandler handles GET /admin/withdrawals.
func (h *WalletHandlers) ListPendingWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)
	requests, err := h.service.ListPendingWithdrawals(r.Context(), limit, nil)
	if err != nil {
		log.Printf("level=error component=api endpoint=admin_withdrawal_list outcome=failed err=%v", err)
		h.writeError(w, http.StatusServiceUnavailable, "Ledger temporarily unavailable, please retry")
		return
	}
	if requests == nil {
		requests = []domain.WithdrawalRequest{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"pending_withdrawals": requests})
}

// ApproveWithdrawalHandler handles PATCH /admin/withdrawals/{id}/approve.
func (h *WalletHandlers) ApproveWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	h.decideWithdrawal(w, r, domain.WithdrawalApproved)
}

// RejectWithdrawalHandler handles PATCH /admin/withdrawals/{id}/reject.
func (h *WalletHandlers) RejectWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	h.decideWithdrawal(w, r, domain.WithdrawalRejected)
}

func (h *WalletHandlers) decideWithdrawal(w http.ResponseWriter, r *http.Request, decision string) {
	adminID, ok := h.callerWalletID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid withdrawal id")
		return
	}

	var resolved *domain.WithdrawalRequest
	if decision == domain.WithdrawalApproved {
		resolved, err = h.service.ApproveWithdrawal(r.Context(), withdrawalID, adminID)
	} else {
		resolved, err = h.service.RejectWithdrawal(r.Context(), withdrawalID, adminID)
	}
	if err != nil {
		h.writeWithdrawalError(w, adminID, "admin_withdrawal_"+decision, err, resolved)
		return
	}

	log.Printf("level=info component=api endpoint=admin_withdrawal_decision outcome=accepted withdrawal_id=%s decision=%s admin_id=%s", withdrawalID, decision, adminID)
	h.writeJSON(w, http.StatusOK, resolved)
}

// AdminCreditHandler handles POST /admin/wallets/{ownerID}/credit -- the
// manual top-up path used by support staff. The idempotency key is required
// so a retried form submission cannot credit twice.
func (h *WalletHandlers) AdminCreditHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.callerWalletID(w, r)
	if !ok {
		return
	}
	walletID, err := uuid.Parse(chi.URLParam(r, "ownerID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid owner id")
		return
	}

	var req domain.AdminCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.IdempotencyKey == "" {
		h.writeError(w, http.StatusBadRequest, "idempotency_key is required")
		return
	}

	record, err := h.service.Credit(r.Context(), app.MutationParams{
		WalletID:       walletID,
		Amount:         req.Amount,
		Method:         "agent",
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
		Meta:           map[string]string{"admin_id": adminID.String()},
	})
	if err != nil {
		if errors.Is(err, app.ErrInvalidAmount) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=admin_credit outcome=failed wallet_id=%s admin_id=%s err=%v", walletID, adminID, err)
		if errors.Is(err, app.ErrLedgerUnavailable) {
			h.writeError(w, http.StatusServiceUnavailable, "Ledger temporarily unavailable, please retry")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("level=info component=api endpoint=admin_credit outcome=accepted wallet_id=%s amount=%d admin_id=%s", walletID, record.Amount, adminID)
	h.writeJSON(w, http.StatusCreated, record)
}
