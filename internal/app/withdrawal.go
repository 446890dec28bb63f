/**
 * @description
 * The withdrawal workflow: a state machine (pending -> approved | rejected |
 * cancelled) built on top of the wallet ledger. Creating a request reserves
 * the amount with a hold; approval settles it (debit plus release of the
 * matching hold, one idempotent compound step); rejection and cancellation
 * release the hold back to available.
 *
 * Every transition is one idempotent ledger call keyed by the withdrawal id,
 * so replaying a transition after a crash or timeout is always safe. The
 * external payout provider is only invoked after the ledger settlement is
 * durably committed, via the payout.requested event consumed by the
 * dispatcher in payout_dispatcher.go.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - github.com/google/uuid: For withdrawal identifiers.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/vendora/wallet-service/internal/domain"
	"github.com/vendora/wallet-service/internal/store"
)

// Event routing keys on the wallet events exchange.
const (
	RoutingKeyWithdrawalCreated  = "withdrawal.created"
	RoutingKeyWithdrawalResolved = "withdrawal.resolved"
	RoutingKeyPayoutRequested    = "payout.requested"
	RoutingKeyPayoutResult       = "payout.result"
)

// RequestWithdrawal validates the amount against the chosen payout method's
// bounds, reserves the funds, and persists the pending request. If the hold
// fails with insufficient funds the request is never created.
func (s *Service) RequestWithdrawal(ctx context.Context, walletID uuid.UUID, req domain.CreateWithdrawalRequest) (*domain.WithdrawalRequest, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	method, err := s.repo.FindWithdrawMethodByID(ctx, req.MethodID)
	if err != nil {
		return nil, s.ledgerErr(err)
	}
	if !method.Enabled {
		return nil, ErrMethodDisabled
	}
	if req.Amount < method.MinAmount {
		return nil, ErrAmountBelowMinimum
	}
	if method.MaxAmount > 0 && req.Amount > method.MaxAmount {
		return nil, ErrAmountAboveMaximum
	}

	if s.limiter != nil && s.withdrawalsPerHourLimit > 0 {
		count, _, err := s.limiter.ConsumeRateLimit(ctx, "withdrawal_create", walletID.String(), s.withdrawalsPerHourLimit, time.Hour)
		if err != nil {
			// Rate limiting is protective, not load-bearing; fail open.
			log.Printf("level=warn component=withdrawal msg=\"rate limiter unavailable\" wallet_id=%s err=%v", walletID, err)
		} else if count > s.withdrawalsPerHourLimit {
			return nil, ErrRateLimited
		}
	}

	created, err := s.repo.CreateWithdrawalWithHold(ctx, store.CreateWithdrawalParams{
		ID:          uuid.New(),
		WalletID:    walletID,
		Amount:      req.Amount,
		MethodID:    req.MethodID,
		AccountInfo: req.AccountInfo,
	})
	if err != nil {
		return nil, s.ledgerErr(err)
	}

	log.Printf("level=info component=withdrawal msg=\"withdrawal requested\" withdrawal_id=%s wallet_id=%s amount=%d method=%s", created.ID, walletID, created.Amount, created.MethodID)
	s.publish(ctx, RoutingKeyWithdrawalCreated, domain.WithdrawalResolvedEvent{
		WithdrawalID: created.ID,
		WalletID:     created.WalletID,
		Amount:       created.Amount,
		Status:       created.Status,
		Timestamp:    time.Now().UTC(),
	})
	return created, nil
}

// ApproveWithdrawal settles a pending request: the held amount is debited and
// the hold released in one idempotent compound step, then the payout request
// is handed to the dispatcher. The request moves to approved as soon as the
// ledger settlement commits, independent of payout-provider latency.
func (s *Service) ApproveWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID) (*domain.WithdrawalRequest, error) {
	resolved, err := s.repo.ResolveWithdrawal(ctx, store.ResolveWithdrawalParams{
		ID:        withdrawalID,
		NewStatus: domain.WithdrawalApproved,
		DecidedBy: adminID,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidWithdrawalState) {
			return resolved, err
		}
		return nil, s.ledgerErr(err)
	}

	log.Printf("level=info component=withdrawal msg=\"withdrawal approved\" withdrawal_id=%s wallet_id=%s amount=%d admin_id=%s", resolved.ID, resolved.WalletID, resolved.Amount, adminID)

	s.publish(ctx, RoutingKeyPayoutRequested, domain.PayoutRequestedEvent{
		WithdrawalID: resolved.ID,
		WalletID:     resolved.WalletID,
		Amount:       resolved.Amount,
		MethodID:     resolved.MethodID,
		AccountInfo:  resolved.AccountInfo,
		Timestamp:    time.Now().UTC(),
	})
	s.publishResolved(ctx, resolved)
	return resolved, nil
}

// RejectWithdrawal releases the held funds back to available and moves the
// request to rejected.
func (s *Service) RejectWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID) (*domain.WithdrawalRequest, error) {
	return s.releaseAndResolve(ctx, withdrawalID, adminID, domain.WithdrawalRejected)
}

// CancelWithdrawal is the owner-initiated equivalent of reject. The request
// must belong to the calling wallet; a foreign id reads as not found.
func (s *Service) CancelWithdrawal(ctx context.Context, withdrawalID, walletID uuid.UUID) (*domain.WithdrawalRequest, error) {
	existing, err := s.repo.FindWithdrawalByID(ctx, withdrawalID)
	if err != nil {
		return nil, s.ledgerErr(err)
	}
	if existing.WalletID != walletID {
		return nil, store.ErrWithdrawalNotFound
	}
	return s.releaseAndResolve(ctx, withdrawalID, walletID, domain.WithdrawalCancelled)
}

func (s *Service) releaseAndResolve(ctx context.Context, withdrawalID, actorID uuid.UUID, newStatus string) (*domain.WithdrawalRequest, error) {
	resolved, err := s.repo.ResolveWithdrawal(ctx, store.ResolveWithdrawalParams{
		ID:        withdrawalID,
		NewStatus: newStatus,
		DecidedBy: actorID,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidWithdrawalState) {
			return resolved, err
		}
		return nil, s.ledgerErr(err)
	}

	log.Printf("level=info component=withdrawal msg=\"withdrawal resolved\" withdrawal_id=%s wallet_id=%s status=%s actor_id=%s", resolved.ID, resolved.WalletID, resolved.Status, actorID)
	s.publishResolved(ctx, resolved)
	return resolved, nil
}

func (s *Service) publishResolved(ctx context.Context, req *domain.WithdrawalRequest) {
	s.publish(ctx, RoutingKeyWithdrawalResolved, domain.WithdrawalResolvedEvent{
		WithdrawalID: req.ID,
		WalletID:     req.WalletID,
		Amount:       req.Amount,
		Status:       req.Status,
		Timestamp:    time.Now().UTC(),
	})
}

// GetWithdrawalForWallet retrieves one request, scoped to the caller's wallet.
func (s *Service) GetWithdrawalForWallet(ctx context.Context, walletID, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error) {
	req, err := s.repo.FindWithdrawalByID(ctx, withdrawalID)
	if err != nil {
		return nil, s.ledgerErr(err)
	}
	if req.WalletID != walletID {
		return nil, store.ErrWithdrawalNotFound
	}
	return req, nil
}

// ListWithdrawals returns the owner's requests, newest-first.
func (s *Service) ListWithdrawals(ctx context.Context, walletID uuid.UUID, opts domain.WithdrawalListOptions) ([]domain.WithdrawalRequest, error) {
	requests, err := s.repo.ListWithdrawalsByWallet(ctx, walletID, opts)
	if err != nil {
		return nil, s.ledgerErr(err)
	}
	return requests, nil
}

// ListPendingWithdrawals returns the admin review queue, oldest-first.
func (s *Service) ListPendingWithdrawals(ctx context.Context, limit int, olderThan *time.Time) ([]domain.WithdrawalRequest, error) {
	requests, err := s.repo.ListPendingWithdrawals(ctx, limit, olderThan)
	if err != nil {
		return nil, s.ledgerErr(err)
	}
	return requests, nil
}

// ListWithdrawMethods returns the enabled payout channels for client display.
func (s *Service) ListWithdrawMethods(ctx context.Context) ([]domain.WithdrawMethod, error) {
	methods, err := s.repo.ListWithdrawMethods(ctx)
	if err != nil {
		return nil, s.ledgerErr(err)
	}
	return methods, nil
}
