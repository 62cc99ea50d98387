package core

import "time"

// RejectReason classifies why a transfer attempt was turned down before the
// ledger was touched (input errors, policy rejections, admission rejection).
type RejectReason string

const (
	RejectNone               RejectReason = ""
	RejectInvalidRecipient   RejectReason = "invalid_recipient"
	RejectInvalidAmount      RejectReason = "invalid_amount"
	RejectInvalidDescription RejectReason = "invalid_description"
	RejectSelfTransfer       RejectReason = "self_transfer"
	RejectInsufficientFunds  RejectReason = "insufficient_funds"
	RejectDailyLimitExceeded RejectReason = "daily_limit_exceeded"
	RejectRateLimited        RejectReason = "rate_limited"
)

// OutcomeStatus is the terminal classification of one execute call.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeRejected  OutcomeStatus = "rejected"
	OutcomeFailed    OutcomeStatus = "failed"
)

// Outcome is the transfer executor's result.
//
// Completed outcomes carry the persisted transfer and the caller-visible new
// balance. Rejected outcomes carry the reason plus enough detail for the
// caller to self-correct (remaining allowance, rate-limit reset). Failed
// outcomes distinguish retryable infrastructure errors from indeterminate
// ones: after an indeterminate failure the caller must reconcile by looking
// the transfer up by Reference rather than blindly retrying.
type Outcome struct {
	Status OutcomeStatus

	// Completed.
	Transfer   *Transfer
	NewBalance Money

	// Rejected.
	Reason    RejectReason
	Detail    string
	Remaining Money     // daily-limit rejections
	ResetAt   time.Time // rate-limit rejections

	// Failed.
	Retryable     bool
	Indeterminate bool
	Reference     string // set on indeterminate failures for status lookup
}

// Completed builds a successful outcome.
func Completed(t *Transfer, newBalance Money) Outcome {
	return Outcome{Status: OutcomeCompleted, Transfer: t, NewBalance: newBalance}
}

// Rejected builds a policy or input rejection outcome.
func Rejected(reason RejectReason, detail string) Outcome {
	return Outcome{Status: OutcomeRejected, Reason: reason, Detail: detail}
}

// Failed builds an infrastructure-failure outcome.
func Failed(retryable bool) Outcome {
	return Outcome{Status: OutcomeFailed, Retryable: retryable}
}
