package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount occurs when an amount is not a positive decimal with at most
	// Scale fractional digits.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound is returned when one of the referenced accounts does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransferNotFound is returned by transfer lookups that match nothing.
	ErrTransferNotFound = errors.New("transfer not found")

	ErrSameAccount         = errors.New("source and destination accounts are the same")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrInvalidTransferType = errors.New("invalid transfer type")
	ErrInvalidCurrency     = errors.New("invalid currency")

	// ErrDuplicateTransaction indicates the provided idempotency key already exists
	// and therefore the operation should be treated as idempotent. It is returned
	// together with the previously recorded transfer.
	ErrDuplicateTransaction = errors.New("duplicate transaction")
)

const (
	// StatusCompleted is the only status a persisted transfer can have.
	StatusCompleted = "completed"

	// DefaultEntriesLimit bounds Entries when the caller passes a non-positive limit.
	DefaultEntriesLimit = 50
)

// TransferType classifies the business origin of a transfer.
type TransferType string

const (
	TypeInternalTransfer TransferType = "INTERNAL_TRANSFER"
	TypeExternalTransfer TransferType = "EXTERNAL_TRANSFER"
	TypeCardPayment      TransferType = "CARD_PAYMENT"
	TypeATMWithdrawal    TransferType = "ATM_WITHDRAWAL"
	TypeDeposit          TransferType = "DEPOSIT"
	TypeCurrencyExchange TransferType = "CURRENCY_EXCHANGE"
)

// ParseTransferType maps a raw value to a TransferType. An empty value yields
// TypeInternalTransfer.
func ParseTransferType(raw string) (TransferType, error) {
	if raw == "" {
		return TypeInternalTransfer, nil
	}
	t := TransferType(raw)
	if !t.Valid() {
		return "", ErrInvalidTransferType
	}
	return t, nil
}

// Valid reports whether t is one of the known transfer types.
func (t TransferType) Valid() bool {
	switch t {
	case TypeInternalTransfer, TypeExternalTransfer, TypeCardPayment,
		TypeATMWithdrawal, TypeDeposit, TypeCurrencyExchange:
		return true
	}
	return false
}

// EntryType is the side of a ledger entry.
type EntryType string

const (
	EntryDebit  EntryType = "debit"
	EntryCredit EntryType = "credit"
)

// Account is a balance holder. Balance is only mutated inside a locked transfer.
type Account struct {
	ID        string
	UserID    string
	Currency  string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transfer is the immutable record of a completed movement between two accounts.
type Transfer struct {
	ID             string
	FromAccountID  string
	ToAccountID    string
	Amount         decimal.Decimal
	Currency       string
	Status         string
	Type           TransferType
	IdempotencyKey string
	Description    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Entry is one side of a double-entry posting. Amount is negative for debits.
type Entry struct {
	ID           string
	AccountID    string
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Type         EntryType
	Description  string
	ReferenceID  string
	CreatedAt    time.Time
}

// TransferRequest carries a validated transfer instruction to a ledger backend.
type TransferRequest struct {
	FromAccountID  string
	ToAccountID    string
	Amount         decimal.Decimal
	Currency       string
	Type           TransferType
	IdempotencyKey string
	Description    string
}

// TransferResult captures the outcome of a ledger posting.
type TransferResult struct {
	Transfer Transfer
	Debit    Entry
	Credit   Entry
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	CreateAccount(ctx context.Context, userID, currency string) (Account, error)
	Account(ctx context.Context, id string) (Account, error)
	TransferByIdempotencyKey(ctx context.Context, key string) (Transfer, error)
	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)
	TransferByID(ctx context.Context, id string) (Transfer, []Entry, error)
	Entries(ctx context.Context, accountID string, limit int) ([]Entry, error)
}

func (r TransferRequest) validate() error {
	if err := checkAmount(r.Amount); err != nil {
		return err
	}
	if r.FromAccountID == r.ToAccountID {
		return ErrSameAccount
	}
	if !r.Type.Valid() {
		return ErrInvalidTransferType
	}
	return nil
}

// lockOrder returns the two account ids sorted ascending. Both backends acquire
// locks in this order.
func lockOrder(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

func debitDescription(req TransferRequest) string {
	if req.Description != "" {
		return req.Description
	}
	return "Transfer to " + req.ToAccountID
}

func creditDescription(req TransferRequest) string {
	if req.Description != "" {
		return req.Description
	}
	return "Transfer from " + req.FromAccountID
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultEntriesLimit
	}
	return limit
}
