/**
 * @description
 * Asynchronous payout handling. The dispatcher consumes payout.requested
 * events published after a withdrawal's ledger settlement commits and invokes
 * the external settlement provider; the result consumer processes the
 * out-of-band outcomes the provider reports later.
 *
 * Failure policy (deliberate): a failed payout is an operational incident for
 * manual reconciliation, never an automatic ledger rollback. A provider
 * outage therefore cannot corrupt wallet state -- the settlement stays
 * committed, the incident is logged and a payout.result event records it.
 *
 * @dependencies
 * - context, encoding/json, log, time: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For publishing result events.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/vendora/wallet-service/internal/domain"
	"github.com/vendora/wallet-service/internal/store"
	"github.com/vendora/wallet-service/pkg/rabbitmq"
)

// PayoutClient invokes the external settlement provider. Implemented by
// pkg/payoutclient.
type PayoutClient interface {
	InitiatePayout(ctx context.Context, withdrawalID string, amount int64, methodID string, accountInfo map[string]string) (providerRef string, err error)
}

// PayoutDispatcher consumes payout.requested events and drives the provider.
type PayoutDispatcher struct {
	repo     store.Repository
	payouts  PayoutClient
	events   rabbitmq.Publisher
	exchange string
}

// NewPayoutDispatcher creates a dispatcher. events may be nil in degraded mode.
func NewPayoutDispatcher(repo store.Repository, payouts PayoutClient, events rabbitmq.Publisher, exchange string) *PayoutDispatcher {
	if exchange == "" {
		exchange = "wallet.events"
	}
	return &PayoutDispatcher{repo: repo, payouts: payouts, events: events, exchange: exchange}
}

// HandlePayoutRequested is the broker binding for payout.requested. The
// return value is the ack decision: malformed payloads are acknowledged to
// drop, and provider failures are acknowledged too -- re-queuing would risk a
// double payout, so failures go to the reconciliation path instead.
func (d *PayoutDispatcher) HandlePayoutRequested(body []byte) bool {
	var event domain.PayoutRequestedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("payout-dispatcher: failed to unmarshal payload: %v", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	providerRef, err := d.payouts.InitiatePayout(ctx, event.WithdrawalID.String(), event.Amount, event.MethodID, event.AccountInfo)
	if err != nil {
		log.Printf("level=error component=payout_dispatcher msg=\"payout initiation failed; queued for manual reconciliation\" withdrawal_id=%s amount=%d err=%v", event.WithdrawalID, event.Amount, err)
		d.publishResult(ctx, domain.PayoutResultEvent{
			WithdrawalID: event.WithdrawalID,
			Success:      false,
			FailureCode:  "provider_error",
			Timestamp:    time.Now().UTC(),
		})
		return true
	}

	if err := d.repo.SetWithdrawalProviderRef(ctx, event.WithdrawalID, providerRef); err != nil {
		// The payout already went out; never retry the delivery. Losing the
		// reference is recoverable from provider records.
		log.Printf("level=error component=payout_dispatcher msg=\"CRITICAL: payout sent but provider ref not recorded\" withdrawal_id=%s provider_ref=%s err=%v", event.WithdrawalID, providerRef, err)
	}

	log.Printf("level=info component=payout_dispatcher msg=\"payout initiated\" withdrawal_id=%s provider_ref=%s", event.WithdrawalID, providerRef)
	return true
}

func (d *PayoutDispatcher) publishResult(ctx context.Context, event domain.PayoutResultEvent) {
	if d.events == nil {
		return
	}
	if err := d.events.Publish(ctx, d.exchange, RoutingKeyPayoutResult, event); err != nil {
		log.Printf("level=warn component=payout_dispatcher msg=\"result publish failed\" withdrawal_id=%s err=%v", event.WithdrawalID, err)
	}
}

// PayoutResultConsumer records the out-of-band outcomes the provider reports
// (relayed onto the broker by the webhook gateway).
type PayoutResultConsumer struct {
	repo store.Repository
}

// NewPayoutResultConsumer creates a result consumer.
func NewPayoutResultConsumer(repo store.Repository) *PayoutResultConsumer {
	return &PayoutResultConsumer{repo: repo}
}

// HandleMessage is the broker binding for payout.result events.
func (c *PayoutResultConsumer) HandleMessage(body []byte) bool {
	var event domain.PayoutResultEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("payout-result-consumer: failed to unmarshal payload: %v", err)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if !event.Success {
		// Reconciliation is a manual admin action; the ledger settlement is
		// never reversed automatically.
		log.Printf("level=error component=payout_result msg=\"external payout failed; manual reconciliation required\" withdrawal_id=%s failure_code=%s provider_ref=%s", event.WithdrawalID, event.FailureCode, event.ProviderRef)
		return true
	}

	if event.ProviderRef == "" {
		return true
	}
	err := c.repo.SetWithdrawalProviderRef(ctx, event.WithdrawalID, event.ProviderRef)
	if err != nil {
		if errors.Is(err, store.ErrWithdrawalNotFound) {
			log.Printf("payout-result-consumer: no withdrawal request %s; acknowledging", event.WithdrawalID)
			return true
		}
		log.Printf("payout-result-consumer: failed to record provider ref for withdrawal %s: %v", event.WithdrawalID, err)
		return false
	}
	return true
}
