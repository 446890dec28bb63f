/**
 * @description
 * This file defines the core domain models for the wallet-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` to represent the value in the smallest currency
 *   unit (kobo), which avoids floating-point inaccuracies with financial data.
 * - Ledger transaction ids are caller-supplied idempotency keys, not generated
 *   UUIDs: a retried mutation reuses the same id and replays to the stored result.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction type tags. Every balance mutation in the system is one of these.
const (
	TxTypeCredit  = "credit"
	TxTypeDebit   = "debit"
	TxTypeHold    = "hold"
	TxTypeRelease = "release"
)

// Transaction status values.
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
	TxStatusReversed  = "reversed"
)

// Withdrawal request status values. All three non-pending states are terminal.
const (
	WithdrawalPending   = "pending"
	WithdrawalApproved  = "approved"
	WithdrawalRejected  = "rejected"
	WithdrawalCancelled = "cancelled"
)

// Wallet is the per-owner monetary account; its ID is the owner's user id
// (one wallet per user, created on first credit). Balance and OnHold are
// mutated exclusively through the ledger store's atomic apply; Available is
// derived and never stored.
type Wallet struct {
	ID            uuid.UUID `json:"id"`      // owner user id
	Balance       int64     `json:"balance"` // in kobo
	OnHold        int64     `json:"on_hold"` // in kobo
	LoyaltyPoints int64     `json:"loyalty_points"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Available returns the spendable portion of the balance.
func (w *Wallet) Available() int64 {
	return w.Balance - w.OnHold
}

// Transaction is the append-only ledger record for any wallet mutation.
// The ID doubles as the idempotency key (typically `<flow>:<entity-id>:<step>`).
// Rows are immutable once written; corrections append a reversing transaction.
type Transaction struct {
	ID          string            `json:"id"`
	WalletID    uuid.UUID         `json:"wallet_id"`
	Type        string            `json:"type"`
	Amount      int64             `json:"amount"` // in kobo, always positive
	Method      string            `json:"method"` // origin tag: top-up, payment, withdrawal, reward...
	Description string            `json:"description"`
	Status      string            `json:"status"`
	Points      int64             `json:"points,omitempty"` // loyalty point delta carried by this transaction
	Meta        map[string]string `json:"meta,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// WithdrawalRequest tracks a payout request through its lifecycle:
// pending -> approved | rejected | cancelled. It is one-to-one with a hold
// transaction and, on resolution, a matching debit or release transaction.
type WithdrawalRequest struct {
	ID          uuid.UUID         `json:"id"`
	WalletID    uuid.UUID         `json:"wallet_id"`
	Amount      int64             `json:"amount"` // in kobo
	MethodID    string            `json:"method_id"`
	AccountInfo map[string]string `json:"account_info"` // payout-channel details, opaque to the ledger
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	DecidedAt   *time.Time        `json:"decided_at,omitempty"`
	DecidedBy   *uuid.UUID        `json:"decided_by,omitempty"`

	// ProviderRef is the external provider's transfer reference, recorded
	// once the payout is initiated. It lives on the request row because
	// ledger transactions are immutable once written.
	ProviderRef *string `json:"provider_ref,omitempty"`
}

// WithdrawalHoldKey is the idempotency key of the hold reserving a request's funds.
func WithdrawalHoldKey(id uuid.UUID) string { return "withdrawal:" + id.String() + ":hold" }

// WithdrawalSettleKey is the idempotency key of the settlement debit written on approval.
func WithdrawalSettleKey(id uuid.UUID) string { return "withdrawal:" + id.String() + ":settle" }

// WithdrawalReleaseKey is the idempotency key of the release written on reject or cancel.
func WithdrawalReleaseKey(id uuid.UUID) string { return "withdrawal:" + id.String() + ":release" }

// HoldKey returns the idempotency key of the hold reserving this request's funds.
func (r *WithdrawalRequest) HoldKey() string { return WithdrawalHoldKey(r.ID) }

// SettleKey returns the idempotency key of the settlement debit written on approval.
func (r *WithdrawalRequest) SettleKey() string { return WithdrawalSettleKey(r.ID) }

// ReleaseKey returns the idempotency key of the release written on reject/cancel.
func (r *WithdrawalRequest) ReleaseKey() string { return WithdrawalReleaseKey(r.ID) }

// WithdrawMethod is read-only payout-channel configuration used to validate
// withdrawal amounts. It is never mutated by this service.
type WithdrawMethod struct {
	ID                 string `json:"id"`
	DisplayName        string `json:"display_name"`
	MinAmount          int64  `json:"min_amount"` // in kobo
	MaxAmount          int64  `json:"max_amount"` // in kobo
	ProcessingTimeHint string `json:"processing_time_hint"`
	Enabled            bool   `json:"enabled"`
}

// Coupon is promotional data from the external catalog, merged into wallet
// display responses and never mutated here.
type Coupon struct {
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	DiscountType  string    `json:"discount_type"` // 'percent' or 'fixed'
	DiscountValue int64     `json:"discount_value"`
	ExpiresAt     time.Time `json:"expires_at"`
	UsageLimit    int       `json:"usage_limit"`
	UsedCount     int       `json:"used_count"`
}

// BalanceSummary is the display payload for the balance endpoint.
type BalanceSummary struct {
	Balance       int64    `json:"balance"`
	OnHold        int64    `json:"on_hold"`
	Available     int64    `json:"available"`
	LoyaltyPoints int64    `json:"loyalty_points"`
	Coupons       []Coupon `json:"coupons,omitempty"`
}

// CreateWithdrawalRequest is the DTO for incoming withdrawal API requests.
type CreateWithdrawalRequest struct {
	Amount      int64             `json:"amount"` // in kobo
	MethodID    string            `json:"method_id"`
	AccountInfo map[string]string `json:"account_info"`
}

// AdminCreditRequest is the DTO for manual admin top-ups.
type AdminCreditRequest struct {
	Amount         int64  `json:"amount"` // in kobo
	Description    string `json:"description"`
	IdempotencyKey string `json:"idempotency_key"`
}

// TransactionListOptions controls filtering and pagination of the
// transaction-history read path. Zero values mean "no filter".
type TransactionListOptions struct {
	Type     string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	Limit    int
}

// WithdrawalListOptions controls filtering and pagination of withdrawal lists.
type WithdrawalListOptions struct {
	Status string
	Page   int
	Limit  int
}

// PayoutRequestedEvent is published after a withdrawal settles on the ledger.
// The payout dispatcher consumes it and invokes the external provider.
type PayoutRequestedEvent struct {
	WithdrawalID uuid.UUID         `json:"withdrawal_id"`
	WalletID     uuid.UUID         `json:"wallet_id"`
	Amount       int64             `json:"amount"`
	MethodID     string            `json:"method_id"`
	AccountInfo  map[string]string `json:"account_info"`
	Timestamp    time.Time         `json:"timestamp"`
}

// WithdrawalResolvedEvent notifies downstream services (notifications,
// vendor app) of a terminal withdrawal decision.
type WithdrawalResolvedEvent struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	WalletID     uuid.UUID `json:"wallet_id"`
	Amount       int64     `json:"amount"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

// PayoutResultEvent is the out-of-band outcome reported by the payout
// provider (webhook relayed onto the broker by the gateway service).
type PayoutResultEvent struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	ProviderRef  string    `json:"provider_ref"`
	Success      bool      `json:"success"`
	FailureCode  string    `json:"failure_code,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
