/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the wallet-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * The ledger contract lives here: `ApplyTransaction` is the single atomic
 * mutation primitive for wallet balances, and the withdrawal helpers bundle
 * the ledger mutation with the request state change in one storage transaction.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/wallet-service/internal/domain"
)

var (
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInsufficientHold       = errors.New("release exceeds held funds")
	ErrInsufficientPoints     = errors.New("insufficient loyalty points")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrWithdrawalNotFound     = errors.New("withdrawal request not found")
	ErrWithdrawMethodNotFound = errors.New("withdraw method not found")
	ErrInvalidWithdrawalState = errors.New("withdrawal is not pending")
)

// ApplyParams describes one ledger mutation. TransactionID is the
// caller-supplied idempotency key; replaying it returns the stored
// transaction without touching the balance.
type ApplyParams struct {
	WalletID      uuid.UUID
	TransactionID string
	Type          string // credit, debit, hold, release
	Amount        int64  // in kobo, must be positive
	Method        string
	Description   string
	Points        int64 // loyalty point delta applied in the same atomic step
	Meta          map[string]string

	// FromHold marks a debit that settles previously held funds: the debit
	// reduces the balance and an equal release reduces onHold, as one
	// indivisible step. Used by withdrawal settlement.
	FromHold bool
}

// CreateWithdrawalParams bundles the hold and the request row insert.
type CreateWithdrawalParams struct {
	ID          uuid.UUID
	WalletID    uuid.UUID
	Amount      int64
	MethodID    string
	AccountInfo map[string]string
}

// ResolveWithdrawalParams drives a pending request to a terminal state.
// NewStatus must be approved, rejected or cancelled; DecidedBy records the
// acting admin (or the owner, for cancellations).
type ResolveWithdrawalParams struct {
	ID        uuid.UUID
	NewStatus string
	DecidedBy uuid.UUID
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Ledger methods. ApplyTransaction is the only way any component mutates
	// a wallet's balance, onHold or loyalty points. The returned bool is true
	// when the call replayed an already-stored transaction (idempotent no-op).
	ApplyTransaction(ctx context.Context, p ApplyParams) (*domain.Transaction, bool, error)
	GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error)

	// Transaction history read path. Rows are immutable once written; there
	// is deliberately no update method here.
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	ListTransactionsByWallet(ctx context.Context, walletID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error)

	// Withdrawal lifecycle. Both mutating methods execute the ledger mutation
	// and the request state change inside a single storage transaction, so a
	// crash can never leave a request without its hold, or a settlement
	// without its status flip.
	CreateWithdrawalWithHold(ctx context.Context, p CreateWithdrawalParams) (*domain.WithdrawalRequest, error)
	ResolveWithdrawal(ctx context.Context, p ResolveWithdrawalParams) (*domain.WithdrawalRequest, error)
	SetWithdrawalProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error
	FindWithdrawalByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error)
	ListWithdrawalsByWallet(ctx context.Context, walletID uuid.UUID, opts domain.WithdrawalListOptions) ([]domain.WithdrawalRequest, error)
	ListPendingWithdrawals(ctx context.Context, limit int, olderThan *time.Time) ([]domain.WithdrawalRequest, error)

	// Withdraw method configuration (read-only reference data).
	FindWithdrawMethodByID(ctx context.Context, id string) (*domain.WithdrawMethod, error)
	ListWithdrawMethods(ctx context.Context) ([]domain.WithdrawMethod, error)
}
