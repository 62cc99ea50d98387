package core

import (
	"errors"
	"time"
)

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
	TransferFailed    TransferStatus = "failed"
	TransferCancelled TransferStatus = "cancelled"
)

type (
	TransferStatus string

	// Account is one user's spendable balance. Balance and daily spend are
	// mutated exclusively through completed transfers; Version backs the
	// conditioned write that serializes concurrent mutations.
	Account struct {
		ID          string
		Handle      string
		DisplayName string
		Balance     Money
		DailySpent  Money
		DailyLimit  Money
		SpentOn     string // YYYY-MM-DD day the DailySpent accumulator belongs to
		Version     int64
		CreatedAt   time.Time
	}

	// Transfer is an immutable record of a completed or failed attempt.
	// It is written once, already in its terminal status.
	Transfer struct {
		ID              string
		SenderAccountID string
		RecipientHandle string
		RecipientName   string
		Amount          Money
		Status          TransferStatus
		Description     string
		Reference       string
		CreatedAt       time.Time
	}

	// Recipient is a remembered transfer destination for one account.
	Recipient struct {
		OwnerID string
		Handle  string
		Name    string
	}

	// AuditEvent records one attempt outcome on the best-effort side channel.
	AuditEvent struct {
		ID        int64
		Actor     string
		Action    string
		Status    string
		Details   string
		CreatedAt time.Time
	}

	// Expense is the enrichment record derived from a completed transfer by
	// the categorization worker.
	Expense struct {
		ID           int64
		AccountID    string
		TransferID   string
		Amount       Money
		Description  string
		MerchantName string
		Category     string
		Confidence   float64
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrAccountNotFound  = errors.New("account not found")
	ErrTransferNotFound = errors.New("transfer not found")
)

// SpentToday returns the daily-spend accumulator as seen on the given day.
// The accumulator rolls over at UTC midnight: a snapshot carrying a stale
// SpentOn day contributes nothing to today's spend.
func (a Account) SpentToday(day string) Money {
	if a.SpentOn != day {
		return Money{}
	}
	return a.DailySpent
}

// Day formats a time as the YYYY-MM-DD spend-window key, always in UTC.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
