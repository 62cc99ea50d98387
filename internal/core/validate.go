package core

import (
	"regexp"
	"strings"
)

// handlePattern is the payment-handle grammar: a local part of letters,
// digits, dots, underscores and hyphens, an @, and an alphabetic provider
// label of at least two characters (e.g. "shop@bank").
var handlePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z]{2,}$`)

// Validation limits. The single-transaction ceiling and description length
// are overridable via ValidationConfig; these are the shipped defaults.
const (
	DefaultMaxAmountCents    = 100_000_00 // 100,000 units per transaction
	DefaultMaxDescriptionLen = 500
)

// ValidationConfig carries the tunable input bounds.
type ValidationConfig struct {
	MaxAmountCents    int64
	MaxDescriptionLen int
}

// DefaultValidationConfig returns the shipped validation bounds.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxAmountCents:    DefaultMaxAmountCents,
		MaxDescriptionLen: DefaultMaxDescriptionLen,
	}
}

// ValidateHandle reports whether s is a well-formed payment handle.
func ValidateHandle(s string) bool {
	return handlePattern.MatchString(s)
}

// HandleLocalPart returns the part of a handle before the @, used as a
// fallback display name when the caller supplies none.
func HandleLocalPart(handle string) string {
	if i := strings.IndexByte(handle, '@'); i > 0 {
		return handle[:i]
	}
	return handle
}

// ValidateTransferInput checks recipient-handle shape, amount bounds and
// description length before any store access. It is pure and returns the
// first violated rule as a rejection reason, or RejectNone when the input
// is acceptable.
func ValidateTransferInput(cfg ValidationConfig, recipientHandle string, amount Money, description string) (RejectReason, string) {
	if cfg.MaxAmountCents <= 0 {
		cfg.MaxAmountCents = DefaultMaxAmountCents
	}
	if cfg.MaxDescriptionLen <= 0 {
		cfg.MaxDescriptionLen = DefaultMaxDescriptionLen
	}

	if !ValidateHandle(recipientHandle) {
		return RejectInvalidRecipient, "invalid payment handle format"
	}
	if amount.Cents <= 0 {
		return RejectInvalidAmount, "amount must be positive"
	}
	if amount.Cents > cfg.MaxAmountCents {
		return RejectInvalidAmount, "single transaction limit exceeded"
	}
	if len(description) > cfg.MaxDescriptionLen {
		return RejectInvalidDescription, "description too long"
	}
	return RejectNone, ""
}
