package core

// GuardResult is the account guard's decision for a proposed transfer.
// When approved it carries the computed next state so the executor can
// apply it with a conditioned write against the snapshot version.
type GuardResult struct {
	Reason RejectReason // RejectNone when approved

	// Next state, valid only when approved.
	NewBalance    Money
	NewDailySpent Money

	// Remaining daily allowance, populated on RejectDailyLimitExceeded.
	Remaining Money
}

// Approved reports whether the guard allowed the transfer.
func (g GuardResult) Approved() bool {
	return g.Reason == RejectNone
}

// CheckTransfer decides self-transfer, insufficient-funds and daily-limit
// outcomes for an account snapshot and a proposed amount. The day argument
// names the current spend window (see Day); a snapshot whose accumulator
// belongs to an earlier day counts as zero spent.
//
// Purely a function of its inputs: no I/O, deterministic.
func CheckTransfer(snapshot Account, amount Money, recipientHandle, day string) GuardResult {
	if recipientHandle == snapshot.Handle {
		return GuardResult{Reason: RejectSelfTransfer}
	}
	if amount.Cents > snapshot.Balance.Cents {
		return GuardResult{Reason: RejectInsufficientFunds}
	}

	spent := snapshot.SpentToday(day)
	if spent.Cents+amount.Cents > snapshot.DailyLimit.Cents {
		return GuardResult{
			Reason:    RejectDailyLimitExceeded,
			Remaining: Money{Cents: snapshot.DailyLimit.Cents - spent.Cents},
		}
	}

	return GuardResult{
		NewBalance:    Money{Cents: snapshot.Balance.Cents - amount.Cents},
		NewDailySpent: Money{Cents: spent.Cents + amount.Cents},
	}
}
