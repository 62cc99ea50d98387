package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"payflow/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "payflow.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedAccount(t *testing.T, repo *SQLiteRepository, id string, balanceCents int64) core.Account {
	t.Helper()
	acc := core.Account{
		ID:          id,
		Handle:      id + "@bank",
		DisplayName: "Test " + id,
		Balance:     core.Money{Cents: balanceCents},
		DailyLimit:  core.Money{Cents: 5000_00},
		SpentOn:     "2025-06-01",
	}
	if err := repo.CreateAccount(context.Background(), acc); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	got, err := repo.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("read seeded account: %v", err)
	}
	return got
}

func applyParams(acc core.Account, amountCents int64, reference string) ApplyTransferParams {
	return ApplyTransferParams{
		Transfer: core.Transfer{
			ID:              "tx-" + reference,
			SenderAccountID: acc.ID,
			RecipientHandle: "shop@bank",
			RecipientName:   "Shop",
			Amount:          core.Money{Cents: amountCents},
			Status:          core.TransferCompleted,
			Reference:       reference,
			CreatedAt:       time.Now().UTC(),
		},
		SnapshotVersion: acc.Version,
		NewBalance:      core.Money{Cents: acc.Balance.Cents - amountCents},
		NewDailySpent:   core.Money{Cents: acc.DailySpent.Cents + amountCents},
		SpentOn:         acc.SpentOn,
	}
}

func TestApplyTransfer_DebitsAndRecords(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	acc := seedAccount(t, repo, "acc-1", 1000_00)

	if err := repo.ApplyTransfer(ctx, applyParams(acc, 300_00, "REF-1")); err != nil {
		t.Fatalf("apply transfer: %v", err)
	}

	after, err := repo.GetAccount(ctx, "acc-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if after.Balance.Cents != 700_00 {
		t.Errorf("balance = %d, want %d", after.Balance.Cents, 700_00)
	}
	if after.DailySpent.Cents != 300_00 {
		t.Errorf("daily spent = %d, want %d", after.DailySpent.Cents, 300_00)
	}
	if after.Version != acc.Version+1 {
		t.Errorf("version = %d, want %d", after.Version, acc.Version+1)
	}

	tr, err := repo.GetTransferByReference(ctx, "REF-1")
	if err != nil {
		t.Fatalf("get transfer: %v", err)
	}
	if tr.Status != core.TransferCompleted {
		t.Errorf("status = %q, want completed", tr.Status)
	}
	if tr.Amount.Cents != 300_00 {
		t.Errorf("amount = %d, want %d", tr.Amount.Cents, 300_00)
	}
}

func TestApplyTransfer_VersionConflict(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	acc := seedAccount(t, repo, "acc-1", 1000_00)

	// First write lands and bumps the version.
	if err := repo.ApplyTransfer(ctx, applyParams(acc, 100_00, "REF-1")); err != nil {
		t.Fatalf("first apply: %v", err)
	}

	// Second write against the stale snapshot must be refused whole: no
	// balance change, no transfer row.
	err := repo.ApplyTransfer(ctx, applyParams(acc, 100_00, "REF-2"))
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}

	if _, err := repo.GetTransferByReference(ctx, "REF-2"); !errors.Is(err, core.ErrTransferNotFound) {
		t.Errorf("conflicted transfer should not exist, got err %v", err)
	}
	after, _ := repo.GetAccount(ctx, "acc-1")
	if after.Balance.Cents != 900_00 {
		t.Errorf("balance = %d, want %d (single debit only)", after.Balance.Cents, 900_00)
	}
}

func TestApplyTransfer_DuplicateReference(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	acc := seedAccount(t, repo, "acc-1", 1000_00)

	if err := repo.ApplyTransfer(ctx, applyParams(acc, 100_00, "REF-1")); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	acc, _ = repo.GetAccount(ctx, "acc-1")

	err := repo.ApplyTransfer(ctx, applyParams(acc, 100_00, "REF-1"))
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("err = %v, want ErrDuplicateReference", err)
	}

	// The rolled-back attempt must not have debited the account.
	after, _ := repo.GetAccount(ctx, "acc-1")
	if after.Balance.Cents != 900_00 {
		t.Errorf("balance = %d, want %d", after.Balance.Cents, 900_00)
	}
	if after.Version != acc.Version {
		t.Errorf("version = %d, want unchanged %d", after.Version, acc.Version)
	}
}

func TestGetAccount_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	if _, err := repo.GetAccount(context.Background(), "missing"); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
	if _, err := repo.GetAccountByHandle(context.Background(), "missing@bank"); !errors.Is(err, core.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestUpsertRecipient_Idempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	seedAccount(t, repo, "acc-1", 0)

	rec := core.Recipient{OwnerID: "acc-1", Handle: "shop@bank", Name: "Shop"}
	if err := repo.UpsertRecipient(ctx, rec); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	rec.Name = "Shop Renamed"
	if err := repo.UpsertRecipient(ctx, rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	list, err := repo.ListRecipients(ctx, "acc-1")
	if err != nil {
		t.Fatalf("list recipients: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(recipients) = %d, want 1", len(list))
	}
	if list[0].Name != "Shop Renamed" {
		t.Errorf("name = %q, want silent overwrite", list[0].Name)
	}
}

func TestInsertExpense_DropsRedelivery(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := core.Expense{
		AccountID:    "acc-1",
		TransferID:   "tx-1",
		Amount:       core.Money{Cents: 300_00},
		Description:  "lunch",
		MerchantName: "Shop",
		Category:     "Food & Dining",
		Confidence:   0.9,
	}
	if err := repo.InsertExpense(ctx, e); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	e.Category = "Other"
	if err := repo.InsertExpense(ctx, e); err != nil {
		t.Fatalf("redelivered insert: %v", err)
	}

	got, err := repo.GetExpenseByTransferID(ctx, "tx-1")
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if got.Category != "Food & Dining" {
		t.Errorf("category = %q, first write should win", got.Category)
	}
}

func TestAuditEvents_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, status := range []string{"success", "failure"} {
		err := repo.InsertAuditEvent(ctx, core.AuditEvent{
			Actor:   "acc-1",
			Action:  "PAYMENT_SENT",
			Status:  status,
			Details: `{"recipient":"shop@bank"}`,
		})
		if err != nil {
			t.Fatalf("insert audit event: %v", err)
		}
	}

	events, err := repo.ListAuditEvents(ctx, "acc-1", 10)
	if err != nil {
		t.Fatalf("list audit events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
}

func TestListTransfers_Order(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	acc := seedAccount(t, repo, "acc-1", 1000_00)

	for i, ref := range []string{"REF-1", "REF-2", "REF-3"} {
		p := applyParams(acc, 100_00, ref)
		p.Transfer.CreatedAt = time.Date(2025, 6, 1, 10, i, 0, 0, time.UTC)
		if err := repo.ApplyTransfer(ctx, p); err != nil {
			t.Fatalf("apply %s: %v", ref, err)
		}
		acc, _ = repo.GetAccount(ctx, "acc-1")
	}

	transfers, err := repo.ListTransfers(ctx, "acc-1", 2)
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("len = %d, want 2", len(transfers))
	}
	if transfers[0].Reference != "REF-3" {
		t.Errorf("first = %q, want most recent REF-3", transfers[0].Reference)
	}
}
