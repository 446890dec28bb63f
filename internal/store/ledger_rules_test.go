package store

import (
	"errors"
	"testing"
)

func TestApplyToBalances(t *testing.T) {
	tests := []struct {
		name        string
		txType      string
		amount      int64
		balance     int64
		onHold      int64
		fromHold    bool
		wantBalance int64
		wantOnHold  int64
		wantErr     error
	}{
		{
			name:        "credit adds to balance",
			txType:      "credit",
			amount:      10000,
			balance:     5000,
			onHold:      0,
			wantBalance: 15000,
			wantOnHold:  0,
		},
		{
			name:        "credit leaves existing hold untouched",
			txType:      "credit",
			amount:      2500,
			balance:     5000,
			onHold:      3000,
			wantBalance: 7500,
			wantOnHold:  3000,
		},
		{
			name:        "debit spends available funds",
			txType:      "debit",
			amount:      3000,
			balance:     5000,
			onHold:      0,
			wantBalance: 2000,
			wantOnHold:  0,
		},
		{
			name:    "debit cannot spend held funds",
			txType:  "debit",
			amount:  6000,
			balance: 8000,
			onHold:  3000,
			wantErr: ErrInsufficientFunds,
		},
		{
			name:        "debit up to exactly the available amount succeeds",
			txType:      "debit",
			amount:      5000,
			balance:     8000,
			onHold:      3000,
			wantBalance: 3000,
			wantOnHold:  3000,
		},
		{
			name:        "settlement debit reduces balance and hold together",
			txType:      "debit",
			amount:      2000,
			balance:     5000,
			onHold:      2000,
			fromHold:    true,
			wantBalance: 3000,
			wantOnHold:  0,
		},
		{
			name:     "settlement debit requires a matching hold",
			txType:   "debit",
			amount:   2000,
			balance:  5000,
			onHold:   1500,
			fromHold: true,
			wantErr:  ErrInsufficientHold,
		},
		{
			name:        "hold reserves available funds without reducing balance",
			txType:      "hold",
			amount:      2000,
			balance:     5000,
			onHold:      0,
			wantBalance: 5000,
			wantOnHold:  2000,
		},
		{
			name:    "hold cannot exceed available funds",
			txType:  "hold",
			amount:  3001,
			balance: 5000,
			onHold:  2000,
			wantErr: ErrInsufficientFunds,
		},
		{
			name:        "release returns held funds to available",
			txType:      "release",
			amount:      2000,
			balance:     5000,
			onHold:      2000,
			wantBalance: 5000,
			wantOnHold:  0,
		},
		{
			name:    "release cannot exceed held funds",
			txType:  "release",
			amount:  2001,
			balance: 5000,
			onHold:  2000,
			wantErr: ErrInsufficientHold,
		},
		{
			name:    "zero amount is rejected",
			txType:  "credit",
			amount:  0,
			balance: 5000,
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount is rejected",
			txType:  "debit",
			amount:  -100,
			balance: 5000,
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "unknown transaction type is rejected",
			txType:  "transfer",
			amount:  1000,
			balance: 5000,
			wantErr: ErrInvalidTransactionType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotBalance, gotOnHold, err := applyToBalances(tt.txType, tt.amount, tt.balance, tt.onHold, tt.fromHold)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				if gotBalance != tt.balance || gotOnHold != tt.onHold {
					t.Fatalf("expected balances unchanged on error, got balance=%d on_hold=%d", gotBalance, gotOnHold)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotBalance != tt.wantBalance {
				t.Fatalf("expected balance=%d, got %d", tt.wantBalance, gotBalance)
			}
			if gotOnHold != tt.wantOnHold {
				t.Fatalf("expected on_hold=%d, got %d", tt.wantOnHold, gotOnHold)
			}
			if gotOnHold < 0 || gotOnHold > gotBalance {
				t.Fatalf("invariant 0 <= on_hold <= balance violated: balance=%d on_hold=%d", gotBalance, gotOnHold)
			}
		})
	}
}
