package core

import "testing"

func snapshot(balance, spent, limit int64) Account {
	return Account{
		ID:         "acc-1",
		Handle:     "me@bank",
		Balance:    Money{Cents: balance},
		DailySpent: Money{Cents: spent},
		DailyLimit: Money{Cents: limit},
		SpentOn:    "2025-06-01",
	}
}

func TestCheckTransfer_Approved(t *testing.T) {
	acc := snapshot(1000_00, 0, 5000_00)

	res := CheckTransfer(acc, Money{Cents: 300_00}, "shop@bank", "2025-06-01")

	if !res.Approved() {
		t.Fatalf("expected approval, got reason %q", res.Reason)
	}
	if res.NewBalance.Cents != 700_00 {
		t.Errorf("new balance = %d, want %d", res.NewBalance.Cents, 700_00)
	}
	if res.NewDailySpent.Cents != 300_00 {
		t.Errorf("new daily spent = %d, want %d", res.NewDailySpent.Cents, 300_00)
	}
}

func TestCheckTransfer_InsufficientFunds(t *testing.T) {
	// The follow-up transfer after spending 300 of 1000: 700 < 800.
	acc := snapshot(700_00, 300_00, 5000_00)

	res := CheckTransfer(acc, Money{Cents: 800_00}, "shop@bank", "2025-06-01")

	if res.Reason != RejectInsufficientFunds {
		t.Fatalf("reason = %q, want insufficient funds", res.Reason)
	}
}

func TestCheckTransfer_SelfTransfer(t *testing.T) {
	acc := snapshot(1000_00, 0, 5000_00)

	for _, cents := range []int64{1, 100_00, 999_999_00} {
		res := CheckTransfer(acc, Money{Cents: cents}, "me@bank", "2025-06-01")
		if res.Reason != RejectSelfTransfer {
			t.Errorf("amount %d: reason = %q, want self transfer", cents, res.Reason)
		}
	}
}

func TestCheckTransfer_DailyLimit(t *testing.T) {
	tests := []struct {
		name       string
		spent      int64
		amount     int64
		wantReason RejectReason
		wantRemain int64
	}{
		{"exactly at limit allowed", 4700_00, 300_00, RejectNone, 0},
		{"one cent over rejected", 4700_00, 300_01, RejectDailyLimitExceeded, 300_00},
		{"reported remaining allowance", 4900_00, 150_00, RejectDailyLimitExceeded, 100_00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := snapshot(1_000_000_00, tt.spent, 5000_00)
			res := CheckTransfer(acc, Money{Cents: tt.amount}, "shop@bank", "2025-06-01")

			if res.Reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", res.Reason, tt.wantReason)
			}
			if tt.wantReason == RejectDailyLimitExceeded && res.Remaining.Cents != tt.wantRemain {
				t.Errorf("remaining = %d, want %d", res.Remaining.Cents, tt.wantRemain)
			}
		})
	}
}

func TestCheckTransfer_StaleSpendWindow(t *testing.T) {
	// Accumulator from a previous day must not count against today's limit.
	acc := snapshot(10_000_00, 4900_00, 5000_00)

	res := CheckTransfer(acc, Money{Cents: 4000_00}, "shop@bank", "2025-06-02")

	if !res.Approved() {
		t.Fatalf("expected approval after rollover, got %q", res.Reason)
	}
	if res.NewDailySpent.Cents != 4000_00 {
		t.Errorf("new daily spent = %d, want %d (reset before accumulate)", res.NewDailySpent.Cents, 4000_00)
	}
}

func TestCheckTransfer_SelfTransferBeforeFunds(t *testing.T) {
	// Self-transfer wins even when the amount would also be unaffordable.
	acc := snapshot(10_00, 0, 5000_00)

	res := CheckTransfer(acc, Money{Cents: 100_00}, "me@bank", "2025-06-01")
	if res.Reason != RejectSelfTransfer {
		t.Fatalf("reason = %q, want self transfer", res.Reason)
	}
}
