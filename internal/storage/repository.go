// Package storage implements the durable ledger store on SQLite: account
// balances, transfer history, remembered recipients, audit events and
// categorized expense records.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"payflow/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrVersionConflict reports that the conditioned account write found
	// the row changed since the snapshot read. The caller re-reads and
	// retries.
	ErrVersionConflict = errors.New("account modified concurrently")

	// ErrDuplicateReference reports a collision on the transfer reference.
	// The caller retries with a freshly generated reference.
	ErrDuplicateReference = errors.New("duplicate transfer reference")
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection keeps
	// the driver from ever returning SQLITE_BUSY to the executor.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateAccount inserts a new account row. Onboarding happens outside the
// transfer core; this exists for provisioning tools and tests.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, handle, display_name, balance_cents, daily_spent_cents, daily_limit_cents, spent_on, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		a.ID, a.Handle, a.DisplayName, a.Balance.Cents, a.DailySpent.Cents, a.DailyLimit.Cents, a.SpentOn, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccount reads the authoritative account snapshot, including the row
// version the conditioned write will be checked against.
func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx, `
		SELECT id, handle, display_name, balance_cents, daily_spent_cents, daily_limit_cents, spent_on, version, created_at
		FROM accounts WHERE id = ?`, id).Scan(
		&a.ID, &a.Handle, &a.DisplayName, &a.Balance.Cents, &a.DailySpent.Cents, &a.DailyLimit.Cents, &a.SpentOn, &a.Version, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// GetAccountByHandle looks an account up by its payment handle.
func (r *SQLiteRepository) GetAccountByHandle(ctx context.Context, handle string) (core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx, `
		SELECT id, handle, display_name, balance_cents, daily_spent_cents, daily_limit_cents, spent_on, version, created_at
		FROM accounts WHERE handle = ?`, handle).Scan(
		&a.ID, &a.Handle, &a.DisplayName, &a.Balance.Cents, &a.DailySpent.Cents, &a.DailyLimit.Cents, &a.SpentOn, &a.Version, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account by handle: %w", err)
	}
	return a, nil
}

// ApplyTransferParams carries the executor's computed next state plus the
// snapshot version the write is conditioned on.
type ApplyTransferParams struct {
	Transfer        core.Transfer
	SnapshotVersion int64
	NewBalance      core.Money
	NewDailySpent   core.Money
	SpentOn         string
}

// ApplyTransfer performs the single atomic debit-and-record step: the
// account row is written conditioned on its version being unchanged since
// the snapshot read, and the transfer row is inserted in its terminal
// status, both inside one transaction. A concurrent modification surfaces
// as ErrVersionConflict with no rows written.
func (r *SQLiteRepository) ApplyTransfer(ctx context.Context, p ApplyTransferParams) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance_cents = ?, daily_spent_cents = ?, spent_on = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		p.NewBalance.Cents, p.NewDailySpent.Cents, p.SpentOn,
		p.Transfer.SenderAccountID, p.SnapshotVersion)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account rows affected: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	t := p.Transfer
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transfers (id, sender_account_id, recipient_handle, recipient_name, amount_cents, status, description, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SenderAccountID, t.RecipientHandle, t.RecipientName,
		t.Amount.Cents, string(t.Status), t.Description, t.Reference, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "transfers.reference") {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert transfer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer tx: %w", err)
	}

	slog.InfoContext(ctx, "Transfer applied to ledger",
		"transfer_id", t.ID,
		"sender_account_id", t.SenderAccountID,
		"amount_cents", t.Amount.Cents,
		"reference", t.Reference)

	return nil
}

// GetTransferByReference supports status reconciliation after an
// indeterminate write outcome.
func (r *SQLiteRepository) GetTransferByReference(ctx context.Context, reference string) (core.Transfer, error) {
	var t core.Transfer
	var status string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, sender_account_id, recipient_handle, recipient_name, amount_cents, status, description, reference, created_at
		FROM transfers WHERE reference = ?`, reference).Scan(
		&t.ID, &t.SenderAccountID, &t.RecipientHandle, &t.RecipientName,
		&t.Amount.Cents, &status, &t.Description, &t.Reference, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transfer{}, core.ErrTransferNotFound
	}
	if err != nil {
		return core.Transfer{}, fmt.Errorf("get transfer by reference: %w", err)
	}
	t.Status = core.TransferStatus(status)
	return t, nil
}

// ListTransfers returns the most recent transfers sent by an account.
func (r *SQLiteRepository) ListTransfers(ctx context.Context, senderAccountID string, limit int) ([]core.Transfer, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_account_id, recipient_handle, recipient_name, amount_cents, status, description, reference, created_at
		FROM transfers
		WHERE sender_account_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, senderAccountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []core.Transfer
	for rows.Next() {
		var t core.Transfer
		var status string
		if err := rows.Scan(&t.ID, &t.SenderAccountID, &t.RecipientHandle, &t.RecipientName,
			&t.Amount.Cents, &status, &t.Description, &t.Reference, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		t.Status = core.TransferStatus(status)
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// UpsertRecipient remembers a transfer destination for an owner. Writing an
// already-known handle silently refreshes the display name.
func (r *SQLiteRepository) UpsertRecipient(ctx context.Context, rec core.Recipient) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recipients (owner_id, handle, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id, handle) DO UPDATE SET name = excluded.name`,
		rec.OwnerID, rec.Handle, rec.Name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert recipient: %w", err)
	}
	return nil
}

// ListRecipients returns the remembered recipients for an owner, most
// recently added first.
func (r *SQLiteRepository) ListRecipients(ctx context.Context, ownerID string) ([]core.Recipient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT owner_id, handle, name
		FROM recipients
		WHERE owner_id = ?
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []core.Recipient
	for rows.Next() {
		var rec core.Recipient
		if err := rows.Scan(&rec.OwnerID, &rec.Handle, &rec.Name); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

// InsertAuditEvent appends one attempt outcome to the audit trail.
func (r *SQLiteRepository) InsertAuditEvent(ctx context.Context, e core.AuditEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (actor, action, status, details, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.Actor, e.Action, e.Status, e.Details, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns the most recent audit events for an actor.
func (r *SQLiteRepository) ListAuditEvents(ctx context.Context, actor string, limit int) ([]core.AuditEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor, action, status, details, created_at
		FROM audit_events
		WHERE actor = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, actor, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []core.AuditEvent
	for rows.Next() {
		var e core.AuditEvent
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Status, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// InsertExpense writes the categorized expense derived from a completed
// transfer. Redeliveries of the same transfer are silently dropped.
func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (account_id, transfer_id, amount_cents, description, merchant_name, category, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (transfer_id) DO NOTHING`,
		e.AccountID, e.TransferID, e.Amount.Cents, e.Description, e.MerchantName, e.Category, e.Confidence, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

// GetExpenseByTransferID returns the enrichment record for a transfer.
func (r *SQLiteRepository) GetExpenseByTransferID(ctx context.Context, transferID string) (core.Expense, error) {
	var e core.Expense
	err := r.db.QueryRowContext(ctx, `
		SELECT id, account_id, transfer_id, amount_cents, description, merchant_name, category, confidence, created_at
		FROM expenses WHERE transfer_id = ?`, transferID).Scan(
		&e.ID, &e.AccountID, &e.TransferID, &e.Amount.Cents, &e.Description, &e.MerchantName, &e.Category, &e.Confidence, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense for transfer %s: %w", transferID, sql.ErrNoRows)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by transfer id: %w", err)
	}
	return e, nil
}

func isUniqueViolation(err error, constraint string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+constraint)
}
