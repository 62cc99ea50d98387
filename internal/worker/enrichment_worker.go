// Package worker consumes completed-transfer events and enriches them into
// categorized expense records. Enrichment is strictly after the fact: it
// never gates a transfer, and a redelivered event is a no-op thanks to the
// store's transfer-id uniqueness.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"payflow/internal/amqp"
	"payflow/internal/core"
)

// ExpenseStore is the slice of the ledger store the worker writes to.
type ExpenseStore interface {
	InsertExpense(ctx context.Context, e core.Expense) error
}

// EnrichmentWorker turns transfer events into expense records.
type EnrichmentWorker struct {
	store       ExpenseStore
	categorizer Categorizer
}

func NewEnrichmentWorker(store ExpenseStore, categorizer Categorizer) *EnrichmentWorker {
	if categorizer == nil {
		categorizer = KeywordCategorizer{}
	}
	return &EnrichmentWorker{store: store, categorizer: categorizer}
}

// HandleTransferCompleted processes one event. A store failure is returned
// so the delivery is requeued; a categorizer failure degrades to the
// fallback category instead of losing the expense.
func (w *EnrichmentWorker) HandleTransferCompleted(ctx context.Context, msg *amqp.TransferCompletedMessage) error {
	amount := core.Money{Cents: msg.AmountCents}

	category, confidence, err := w.categorizer.Categorize(ctx, msg.Description, msg.RecipientName, amount)
	if err != nil {
		slog.WarnContext(ctx, "Categorization failed, using fallback",
			"error", err,
			"transfer_id", msg.TransferID)
		category, confidence = "Other", 0
	}

	expense := core.Expense{
		AccountID:    msg.SenderAccountID,
		TransferID:   msg.TransferID,
		Amount:       amount,
		Description:  msg.Description,
		MerchantName: msg.RecipientName,
		Category:     category,
		Confidence:   clamp01(confidence),
	}

	if err := w.store.InsertExpense(ctx, expense); err != nil {
		return fmt.Errorf("insert expense for transfer %s: %w", msg.TransferID, err)
	}

	slog.InfoContext(ctx, "Expense recorded",
		"transfer_id", msg.TransferID,
		"category", category,
		"confidence", confidence,
		"amount_cents", msg.AmountCents)

	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
