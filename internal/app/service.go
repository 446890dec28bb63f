/**
 * @description
 * This file contains the core business logic for the wallet-service. The
 * `Service` struct is the typed facade over the ledger store: it exposes
 * balance queries, the four elementary mutations (credit, debit, reserve,
 * unreserve) and the transaction-history read path. The withdrawal workflow
 * built on top of these lives in withdrawal.go.
 *
 * Key features:
 * - Every mutation takes an explicit idempotency key; a retried call with the
 *   same key replays the stored result and causes no second balance effect.
 * - Business-rule errors (insufficient funds, invalid state) pass through
 *   unchanged; storage faults are wrapped as ErrLedgerUnavailable so callers
 *   know a retry with the same key is safe.
 * - Coupon/reward catalog data is merged into balance display responses but
 *   never mutated here.
 *
 * @dependencies
 * - context, errors, fmt, log: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For publishing wallet events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/wallet-service/internal/domain"
	"github.com/vendora/wallet-service/internal/store"
	"github.com/vendora/wallet-service/pkg/couponclient"
	"github.com/vendora/wallet-service/pkg/rabbitmq"
)

var (
	// ErrLedgerUnavailable wraps transient storage faults. Callers may retry
	// with the same idempotency key, never a fresh one.
	ErrLedgerUnavailable = errors.New("ledger temporarily unavailable")

	ErrInvalidAmount      = errors.New("amount must be a positive integer")
	ErrAmountBelowMinimum = errors.New("amount is below the method minimum")
	ErrAmountAboveMaximum = errors.New("amount is above the method maximum")
	ErrMethodDisabled     = errors.New("withdraw method is disabled")
	ErrRateLimited        = errors.New("too many withdrawal requests")
)

// CouponSource supplies read-only promotional data merged into balance
// display responses. Implemented by pkg/couponclient.
type CouponSource interface {
	ActiveCoupons(ctx context.Context, ownerID string) ([]couponclient.Coupon, error)
}

// RateLimiter is the distributed rate-limit primitive used on withdrawal
// creation. A nil limiter disables limiting.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for the wallet ledger.
type Service struct {
	repo    store.Repository
	events  rabbitmq.Publisher
	coupons CouponSource
	limiter RateLimiter

	eventExchange           string
	withdrawalsPerHourLimit int
}

// ServiceOptions carries the optional collaborators and tunables.
type ServiceOptions struct {
	Events                  rabbitmq.Publisher
	Coupons                 CouponSource
	Limiter                 RateLimiter
	EventExchange           string
	WithdrawalsPerHourLimit int
}

// NewService creates a new wallet service instance.
func NewService(repo store.Repository, opts ServiceOptions) *Service {
	exchange := opts.EventExchange
	if exchange == "" {
		exchange = "wallet.events"
	}
	return &Service{
		repo:                    repo,
		events:                  opts.Events,
		coupons:                 opts.Coupons,
		limiter:                 opts.Limiter,
		eventExchange:           exchange,
		withdrawalsPerHourLimit: opts.WithdrawalsPerHourLimit,
	}
}

// MutationParams describes one elementary wallet mutation requested by a
// business flow (order payment, refund, admin top-up, reward...).
type MutationParams struct {
	WalletID       uuid.UUID
	Amount         int64
	Method         string
	Description    string
	IdempotencyKey string
	Points         int64
	Meta           map[string]string
}

// GetBalance returns the wallet's current balance summary with active
// coupons merged in. A wallet that has never been credited reads as empty
// rather than failing, so freshly onboarded owners see zeros.
func (s *Service) GetBalance(ctx context.Context, walletID uuid.UUID) (*domain.BalanceSummary, error) {
	summary := &domain.BalanceSummary{}

	wallet, err := s.repo.GetWallet(ctx, walletID)
	if err != nil && !errors.Is(err, store.ErrWalletNotFound) {
		return nil, s.ledgerErr(err)
	}
	if wallet != nil {
		summary.Balance = wallet.Balance
		summary.OnHold = wallet.OnHold
		summary.Available = wallet.Available()
		summary.LoyaltyPoints = wallet.LoyaltyPoints
	}

	if s.coupons != nil {
		coupons, err := s.coupons.ActiveCoupons(ctx, walletID.String())
		if err != nil {
			// Promotional data is display-only; a catalog outage must not
			// take the balance endpoint down with it.
			log.Printf("level=warn component=wallet_service msg=\"coupon catalog unavailable\" wallet_id=%s err=%v", walletID, err)
		} else {
			for _, c := range coupons {
				summary.Coupons = append(summary.Coupons, domain.Coupon{
					ID:            c.ID,
					Code:          c.Code,
					DiscountType:  c.DiscountType,
					DiscountValue: c.DiscountValue,
					ExpiresAt:     c.ExpiresAt,
					UsageLimit:    c.UsageLimit,
					UsedCount:     c.UsedCount,
				})
			}
		}
	}

	return summary, nil
}

// Credit adds funds to the wallet, creating it on first credit.
func (s *Service) Credit(ctx context.Context, p MutationParams) (*domain.Transaction, error) {
	return s.apply(ctx, p, domain.TxTypeCredit, false)
}

// Debit removes available funds from the wallet.
func (s *Service) Debit(ctx context.Context, p MutationParams) (*domain.Transaction, error) {
	return s.apply(ctx, p, domain.TxTypeDebit, false)
}

// Reserve places a hold on available funds without reducing the balance.
// Used by the withdrawal workflow and escrow-style flows.
func (s *Service) Reserve(ctx context.Context, p MutationParams) (*domain.Transaction, error) {
	return s.apply(ctx, p, domain.TxTypeHold, false)
}

// Unreserve releases previously held funds back to available.
func (s *Service) Unreserve(ctx context.Context, p MutationParams) (*domain.Transaction, error) {
	return s.apply(ctx, p, domain.TxTypeRelease, false)
}

func (s *Service) apply(ctx context.Context, p MutationParams, txType string, fromHold bool) (*domain.Transaction, error) {
	if p.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if p.IdempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}

	record, replayed, err := s.repo.ApplyTransaction(ctx, store.ApplyParams{
		WalletID:      p.WalletID,
		TransactionID: p.IdempotencyKey,
		Type:          txType,
		Amount:        p.Amount,
		Method:        p.Method,
		Description:   p.Description,
		Points:        p.Points,
		Meta:          p.Meta,
		FromHold:      fromHold,
	})
	if err != nil {
		return nil, s.ledgerErr(err)
	}
	if replayed {
		log.Printf("level=info component=wallet_service msg=\"idempotent replay\" transaction_id=%s wallet_id=%s type=%s", p.IdempotencyKey, p.WalletID, txType)
	}
	return record, nil
}

// ListTransactions returns the wallet's history, newest-first.
func (s *Service) ListTransactions(ctx context.Context, walletID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	transactions, err := s.repo.ListTransactionsByWallet(ctx, walletID, opts)
	if err != nil {
		return nil, s.ledgerErr(err)
	}
	return transactions, nil
}

// GetTransactionForWallet retrieves one ledger record, scoped to the caller's
// wallet so owners cannot read each other's history.
func (s *Service) GetTransactionForWallet(ctx context.Context, walletID uuid.UUID, transactionID string) (*domain.Transaction, error) {
	record, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, s.ledgerErr(err)
	}
	if record.WalletID != walletID {
		return nil, store.ErrTransactionNotFound
	}
	return record, nil
}

// ledgerErr passes business-rule sentinels through unchanged and wraps
// everything else as a retryable ErrLedgerUnavailable.
func (s *Service) ledgerErr(err error) error {
	for _, sentinel := range []error{
		store.ErrWalletNotFound,
		store.ErrInsufficientFunds,
		store.ErrInsufficientHold,
		store.ErrInsufficientPoints,
		store.ErrInvalidTransactionType,
		store.ErrInvalidAmount,
		store.ErrTransactionNotFound,
		store.ErrWithdrawalNotFound,
		store.ErrWithdrawMethodNotFound,
		store.ErrInvalidWithdrawalState,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
}

func (s *Service) publish(ctx context.Context, routingKey string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, s.eventExchange, routingKey, payload); err != nil {
		log.Printf("level=warn component=wallet_service msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
