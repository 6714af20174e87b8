package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const (
	accountColumns  = `id, user_id, currency, balance::text, created_at, updated_at`
	transferColumns = `id, from_account_id, to_account_id, amount::text, currency, status, type,
        COALESCE(idempotency_key, ''), description, created_at, updated_at`
	entryColumns = `id, account_id, amount::text, balance_after::text, type, description, reference_id, created_at`
)

// DB is the subset of *pgxpool.Pool used by PostgresLedger.
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger persists accounts, transfers and ledger entries in PostgreSQL.
// Balances are stored on the account row and only change under FOR UPDATE locks.
type PostgresLedger struct {
	db DB
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// CreateAccount inserts a new account with a zero balance.
func (l *PostgresLedger) CreateAccount(ctx context.Context, userID, currency string) (Account, error) {
	if !ValidCurrency(currency) {
		return Account{}, ErrInvalidCurrency
	}
	now := time.Now().UTC()
	acc := Account{
		ID:        uuid.NewString(),
		UserID:    userID,
		Currency:  currency,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, user_id, currency, balance, created_at, updated_at)
        VALUES ($1, $2, $3, 0, $4, $5)`, acc.ID, acc.UserID, acc.Currency, now, now)
	if err != nil {
		return Account{}, fmt.Errorf("insert account: %w", err)
	}
	return acc, nil
}

// Account returns the account with the given id.
func (l *PostgresLedger) Account(ctx context.Context, id string) (Account, error) {
	row := l.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

// TransferByIdempotencyKey looks up a transfer outside of any transaction.
func (l *PostgresLedger) TransferByIdempotencyKey(ctx context.Context, key string) (Transfer, error) {
	row := l.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE idempotency_key = $1`, key)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, ErrTransferNotFound
		}
		return Transfer{}, err
	}
	return t, nil
}

// Transfer records a balanced posting between two accounts inside a single
// transaction. Both account rows are locked in ascending id order.
func (l *PostgresLedger) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if err := req.validate(); err != nil {
		return TransferResult{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	first, second := lockOrder(req.FromAccountID, req.ToAccountID)
	locked, err := lockAccounts(ctx, tx, first, second)
	if err != nil {
		return TransferResult{}, err
	}
	from, okFrom := locked[req.FromAccountID]
	to, okTo := locked[req.ToAccountID]
	if !okFrom || !okTo {
		return TransferResult{}, ErrAccountNotFound
	}
	if from.Currency != req.Currency || to.Currency != req.Currency {
		return TransferResult{}, ErrCurrencyMismatch
	}
	if from.Balance.LessThan(req.Amount) {
		return TransferResult{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	transfer := Transfer{
		ID:             uuid.NewString(),
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         StatusCompleted,
		Type:           req.Type,
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := tx.Exec(ctx, `INSERT INTO transfers (id, from_account_id, to_account_id, amount, currency, status, type,
        idempotency_key, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		transfer.ID, transfer.FromAccountID, transfer.ToAccountID, FormatAmount(transfer.Amount), transfer.Currency,
		transfer.Status, string(transfer.Type), nullIfEmpty(transfer.IdempotencyKey), transfer.Description, now, now); err != nil {
		if req.IdempotencyKey != "" && isUniqueViolation(err) {
			// A concurrent call with the same key committed first.
			_ = tx.Rollback(ctx)
			existing, lookupErr := l.TransferByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr != nil {
				return TransferResult{}, fmt.Errorf("reload transfer after conflict: %w", lookupErr)
			}
			return TransferResult{Transfer: existing}, ErrDuplicateTransaction
		}
		return TransferResult{}, fmt.Errorf("insert transfer: %w", err)
	}

	fromBalance := from.Balance.Sub(req.Amount)
	toBalance := to.Balance.Add(req.Amount)
	if err := updateBalance(ctx, tx, from.ID, fromBalance, now); err != nil {
		return TransferResult{}, err
	}
	if err := updateBalance(ctx, tx, to.ID, toBalance, now); err != nil {
		return TransferResult{}, err
	}

	debit := Entry{
		ID:           uuid.NewString(),
		AccountID:    from.ID,
		Amount:       req.Amount.Neg(),
		BalanceAfter: fromBalance,
		Type:         EntryDebit,
		Description:  debitDescription(req),
		ReferenceID:  transfer.ID,
		CreatedAt:    now,
	}
	credit := Entry{
		ID:           uuid.NewString(),
		AccountID:    to.ID,
		Amount:       req.Amount,
		BalanceAfter: toBalance,
		Type:         EntryCredit,
		Description:  creditDescription(req),
		ReferenceID:  transfer.ID,
		CreatedAt:    now,
	}
	for _, e := range []Entry{debit, credit} {
		if err := insertEntry(ctx, tx, e); err != nil {
			return TransferResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, fmt.Errorf("commit transfer: %w", err)
	}

	return TransferResult{Transfer: transfer, Debit: debit, Credit: credit}, nil
}

// TransferByID returns a transfer and its ledger entries, debit first.
func (l *PostgresLedger) TransferByID(ctx context.Context, id string) (Transfer, []Entry, error) {
	row := l.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, nil, ErrTransferNotFound
		}
		return Transfer{}, nil, err
	}

	rows, err := l.db.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
        WHERE reference_id = $1 ORDER BY amount ASC`, id)
	if err != nil {
		return Transfer{}, nil, err
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return Transfer{}, nil, err
	}
	return t, entries, nil
}

// Entries lists the newest ledger entries of an account.
func (l *PostgresLedger) Entries(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	var exists bool
	if err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrAccountNotFound
	}

	rows, err := l.db.Query(ctx, `SELECT `+entryColumns+` FROM ledger_entries
        WHERE account_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, accountID, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func lockAccounts(ctx context.Context, tx pgx.Tx, ids ...string) (map[string]Account, error) {
	rows, err := tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts
        WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	defer rows.Close()

	locked := make(map[string]Account, len(ids))
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		locked[acc.ID] = acc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	return locked, nil
}

func updateBalance(ctx context.Context, tx pgx.Tx, accountID string, balance decimal.Decimal, at time.Time) error {
	tag, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1, updated_at = $2 WHERE id = $3`,
		FormatAmount(balance), at, accountID)
	if err != nil {
		return fmt.Errorf("update balance of %s: %w", accountID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update balance of %s: %w", accountID, ErrAccountNotFound)
	}
	return nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, e Entry) error {
	_, err := tx.Exec(ctx, `INSERT INTO ledger_entries (id, account_id, amount, balance_after, type, description,
        reference_id, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.AccountID, FormatAmount(e.Amount), FormatAmount(e.BalanceAfter), string(e.Type), e.Description,
		e.ReferenceID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert %s entry: %w", e.Type, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		acc     Account
		balance string
	)
	if err := row.Scan(&acc.ID, &acc.UserID, &acc.Currency, &balance, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return Account{}, err
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return Account{}, fmt.Errorf("decode balance of %s: %w", acc.ID, err)
	}
	acc.Balance = d
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()
	return acc, nil
}

func scanTransfer(row rowScanner) (Transfer, error) {
	var (
		t      Transfer
		amount string
		kind   string
	)
	if err := row.Scan(&t.ID, &t.FromAccountID, &t.ToAccountID, &amount, &t.Currency, &t.Status, &kind,
		&t.IdempotencyKey, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Transfer{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Transfer{}, fmt.Errorf("decode amount of transfer %s: %w", t.ID, err)
	}
	t.Amount = d
	t.Type = TransferType(kind)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e            Entry
			amount       string
			balanceAfter string
			kind         string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &amount, &balanceAfter, &kind, &e.Description,
			&e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		var err error
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", e.ID, err)
		}
		if e.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", e.ID, err)
		}
		e.Type = EntryType(kind)
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
