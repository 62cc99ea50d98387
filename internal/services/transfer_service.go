// Package services orchestrates the transfer flow: input validation,
// rate-limit admission, the account guard, the atomic ledger write and the
// best-effort side effects dispatched after the outcome is fixed.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"payflow/internal/amqp"
	"payflow/internal/audit"
	"payflow/internal/core"
	"payflow/internal/ratelimit"
	"payflow/internal/storage"
)

// Ledger is the slice of the store the executor needs.
type Ledger interface {
	GetAccount(ctx context.Context, id string) (core.Account, error)
	ApplyTransfer(ctx context.Context, p storage.ApplyTransferParams) error
	UpsertRecipient(ctx context.Context, rec core.Recipient) error
	GetTransferByReference(ctx context.Context, reference string) (core.Transfer, error)
	ListTransfers(ctx context.Context, senderAccountID string, limit int) ([]core.Transfer, error)
	ListRecipients(ctx context.Context, ownerID string) ([]core.Recipient, error)
}

// Admitter is the rate limiter's admission contract.
type Admitter interface {
	Admit(ctx context.Context, actor string, op ratelimit.Operation) (ratelimit.Decision, error)
}

// EventPublisher publishes completed transfers for asynchronous enrichment.
type EventPublisher interface {
	PublishTransferCompleted(ctx context.Context, msg *amqp.TransferCompletedMessage) error
}

// Config is the executor's tunable surface.
type Config struct {
	Validation   core.ValidationConfig
	RetryBound   int           // conditioned-write retries before giving up
	StoreTimeout time.Duration // per ledger call
}

// DefaultConfig returns the shipped executor settings.
func DefaultConfig() Config {
	return Config{
		Validation:   core.DefaultValidationConfig(),
		RetryBound:   3,
		StoreTimeout: 5 * time.Second,
	}
}

// TransferService is the transfer executor.
type TransferService struct {
	ledger    Ledger
	limiter   Admitter
	auditor   *audit.Recorder
	publisher EventPublisher
	cfg       Config

	now func() time.Time
	wg  sync.WaitGroup
}

func NewTransferService(ledger Ledger, limiter Admitter, auditor *audit.Recorder, publisher EventPublisher, cfg Config) *TransferService {
	if cfg.RetryBound <= 0 {
		cfg.RetryBound = DefaultConfig().RetryBound
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultConfig().StoreTimeout
	}
	return &TransferService{
		ledger:    ledger,
		limiter:   limiter,
		auditor:   auditor,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Execute runs one transfer attempt end to end and returns its terminal
// outcome. Concurrent calls for the same sender are safe: the ledger write
// is conditioned on the snapshot version, and a detected race is retried
// from a fresh snapshot up to the configured bound.
func (s *TransferService) Execute(ctx context.Context, senderID, recipientHandle, recipientName string, amount core.Money, description string) core.Outcome {
	description = strings.TrimSpace(description)

	// 1. Pure input validation, before any store access.
	if reason, detail := core.ValidateTransferInput(s.cfg.Validation, recipientHandle, amount, description); reason != core.RejectNone {
		return core.Rejected(reason, detail)
	}

	// 2. Admission control. A counter-store failure is an infrastructure
	// failure, never a silent admit.
	decision, err := s.limiter.Admit(ctx, senderID, ratelimit.OpTransfer)
	if err != nil {
		slog.ErrorContext(ctx, "Rate limit check failed", "error", err, "sender", senderID)
		return core.Failed(true)
	}
	if !decision.Allowed {
		outcome := core.Rejected(core.RejectRateLimited, "too many transfers, retry later")
		outcome.ResetAt = decision.ResetAt
		s.recordAttempt(ctx, senderID, recipientHandle, amount, audit.StatusFailure, string(core.RejectRateLimited))
		return outcome
	}

	// 3.-6. Snapshot, guard, conditioned write; retry on contention.
	var lastErr error
	for attempt := 0; attempt <= s.cfg.RetryBound; attempt++ {
		outcome, retry, err := s.attempt(ctx, senderID, recipientHandle, recipientName, amount, description)
		if !retry {
			return outcome
		}
		lastErr = err
		slog.WarnContext(ctx, "Transfer attempt hit write contention, retrying",
			"sender", senderID,
			"attempt", attempt+1,
			"error", err)
	}

	slog.ErrorContext(ctx, "Transfer retries exhausted",
		"sender", senderID,
		"retry_bound", s.cfg.RetryBound,
		"error", lastErr)
	s.recordAttempt(ctx, senderID, recipientHandle, amount, audit.StatusFailure, "write contention")
	return core.Failed(true)
}

// attempt performs one snapshot-guard-write cycle. retry=true means the
// conditioned write lost a race (or the reference collided) and the caller
// should try again from a fresh snapshot.
func (s *TransferService) attempt(ctx context.Context, senderID, recipientHandle, recipientName string, amount core.Money, description string) (core.Outcome, bool, error) {
	readCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	snapshot, err := s.ledger.GetAccount(readCtx, senderID)
	cancel()
	if err != nil {
		if errors.Is(err, core.ErrAccountNotFound) {
			slog.ErrorContext(ctx, "Authenticated actor has no account", "sender", senderID)
			return core.Failed(false), false, nil
		}
		slog.ErrorContext(ctx, "Account snapshot read failed", "error", err, "sender", senderID)
		return core.Failed(true), false, nil
	}

	day := core.Day(s.now())
	guard := core.CheckTransfer(snapshot, amount, recipientHandle, day)
	if !guard.Approved() {
		outcome := core.Rejected(guard.Reason, rejectDetail(guard))
		outcome.Remaining = guard.Remaining
		s.recordAttempt(ctx, senderID, recipientHandle, amount, audit.StatusFailure, string(guard.Reason))
		return outcome, false, nil
	}

	transfer := core.Transfer{
		ID:              uuid.NewString(),
		SenderAccountID: snapshot.ID,
		RecipientHandle: recipientHandle,
		RecipientName:   displayName(recipientName, recipientHandle),
		Amount:          amount,
		Status:          core.TransferCompleted,
		Description:     description,
		Reference:       newReference(),
		CreatedAt:       s.now().UTC(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	err = s.ledger.ApplyTransfer(writeCtx, storage.ApplyTransferParams{
		Transfer:        transfer,
		SnapshotVersion: snapshot.Version,
		NewBalance:      guard.NewBalance,
		NewDailySpent:   guard.NewDailySpent,
		SpentOn:         day,
	})
	cancel()

	switch {
	case err == nil:
		s.dispatchSideEffects(ctx, transfer)
		return core.Completed(&transfer, guard.NewBalance), false, nil

	case errors.Is(err, storage.ErrVersionConflict),
		errors.Is(err, storage.ErrDuplicateReference):
		// Lost-update race or reference collision: retry from a fresh
		// snapshot (and a fresh reference).
		return core.Outcome{}, true, err

	case errors.Is(err, context.DeadlineExceeded):
		// The write may or may not have committed. Surface an
		// indeterminate outcome with the reference so the caller can
		// reconcile instead of blindly retrying.
		slog.ErrorContext(ctx, "Ledger write timed out, outcome indeterminate",
			"sender", senderID,
			"reference", transfer.Reference)
		outcome := core.Failed(false)
		outcome.Indeterminate = true
		outcome.Reference = transfer.Reference
		return outcome, false, nil

	default:
		slog.ErrorContext(ctx, "Ledger write failed", "error", err, "sender", senderID)
		s.recordAttempt(ctx, senderID, recipientHandle, amount, audit.StatusFailure, "ledger write failed")
		return core.Failed(true), false, nil
	}
}

// dispatchSideEffects fires the best-effort followers of a completed
// transfer: audit trail, recipient memory and the enrichment event. They
// run detached from the request; their failures are logged and swallowed.
func (s *TransferService) dispatchSideEffects(ctx context.Context, transfer core.Transfer) {
	detached := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.auditor.RecordPaymentAttempt(detached, transfer.SenderAccountID, transfer.RecipientHandle, transfer.Amount, audit.StatusSuccess, transfer.Reference)
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		writeCtx, cancel := context.WithTimeout(detached, s.cfg.StoreTimeout)
		defer cancel()
		err := s.ledger.UpsertRecipient(writeCtx, core.Recipient{
			OwnerID: transfer.SenderAccountID,
			Handle:  transfer.RecipientHandle,
			Name:    transfer.RecipientName,
		})
		if err != nil {
			slog.WarnContext(detached, "Failed to remember recipient",
				"error", err,
				"owner", transfer.SenderAccountID,
				"handle", transfer.RecipientHandle)
		}
	}()

	if s.publisher != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			msg := amqp.NewTransferCompletedMessage(
				transfer.ID, transfer.Reference, transfer.SenderAccountID,
				transfer.RecipientHandle, transfer.RecipientName,
				transfer.Amount.Cents, transfer.Description)
			if err := s.publisher.PublishTransferCompleted(detached, msg); err != nil {
				slog.WarnContext(detached, "Failed to publish transfer event",
					"error", err,
					"transfer_id", transfer.ID)
			}
		}()
	}
}

// recordAttempt audits a failed attempt without blocking the main flow.
func (s *TransferService) recordAttempt(ctx context.Context, senderID, recipientHandle string, amount core.Money, status, detail string) {
	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.auditor.RecordPaymentAttempt(detached, senderID, recipientHandle, amount, status, detail)
	}()
}

// Drain blocks until all dispatched side effects have finished. Called on
// shutdown and by tests.
func (s *TransferService) Drain() {
	s.wg.Wait()
}

// TransferByReference looks a transfer up by its unique reference, the
// reconciliation path after an indeterminate outcome.
func (s *TransferService) TransferByReference(ctx context.Context, reference string) (core.Transfer, error) {
	return s.ledger.GetTransferByReference(ctx, reference)
}

// RecentTransfers lists an account's most recent sent transfers.
func (s *TransferService) RecentTransfers(ctx context.Context, senderID string, limit int) ([]core.Transfer, error) {
	return s.ledger.ListTransfers(ctx, senderID, limit)
}

// SavedRecipients lists the remembered recipients for an account.
func (s *TransferService) SavedRecipients(ctx context.Context, ownerID string) ([]core.Recipient, error) {
	return s.ledger.ListRecipients(ctx, ownerID)
}

func rejectDetail(g core.GuardResult) string {
	switch g.Reason {
	case core.RejectSelfTransfer:
		return "cannot send money to yourself"
	case core.RejectInsufficientFunds:
		return "insufficient balance"
	case core.RejectDailyLimitExceeded:
		return fmt.Sprintf("daily limit exceeded, remaining %s", g.Remaining)
	default:
		return ""
	}
}

func displayName(name, handle string) string {
	name = strings.TrimSpace(name)
	if name != "" {
		return name
	}
	return core.HandleLocalPart(handle)
}

func newReference() string {
	return "TXN-" + strings.ToUpper(uuid.NewString())
}
