/**
 * @description
 * Pure balance-mutation rules for the ledger. Keeping the arithmetic and the
 * guard conditions out of the SQL path makes the rules directly unit-testable
 * and guarantees every storage implementation applies identical semantics.
 *
 * The wallet invariant enforced here: `0 <= onHold <= balance` at all times,
 * so `available = balance - onHold` can never go negative.
 */

package store

import "github.com/vendora/wallet-service/internal/domain"

// applyToBalances computes the wallet's new balance and onHold for one ledger
// mutation, or returns the business-rule error that rejects it. fromHold only
// applies to debits and turns them into the settlement compound: the debit
// reduces the balance while an equal release reduces onHold, as one step.
func applyToBalances(txType string, amount, balance, onHold int64, fromHold bool) (newBalance, newOnHold int64, err error) {
	if amount <= 0 {
		return balance, onHold, ErrInvalidAmount
	}

	available := balance - onHold

	switch txType {
	case domain.TxTypeCredit:
		return balance + amount, onHold, nil
	case domain.TxTypeDebit:
		if fromHold {
			// Settling held funds: the hold guarantees the balance covers it.
			if onHold < amount {
				return balance, onHold, ErrInsufficientHold
			}
			return balance - amount, onHold - amount, nil
		}
		if available < amount {
			return balance, onHold, ErrInsufficientFunds
		}
		return balance - amount, onHold, nil
	case domain.TxTypeHold:
		if available < amount {
			return balance, onHold, ErrInsufficientFunds
		}
		return balance, onHold + amount, nil
	case domain.TxTypeRelease:
		if onHold < amount {
			return balance, onHold, ErrInsufficientHold
		}
		return balance, onHold - amount, nil
	default:
		return balance, onHold, ErrInvalidTransactionType
	}
}
