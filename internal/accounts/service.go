package accounts

import (
    "context"
    "errors"
    "log/slog"
    "strings"

    "github.com/shopspring/decimal"

    "github.com/payvost/corebanking/internal/ledger"
)

// MaxEntriesLimit caps a single history page.
const MaxEntriesLimit = 200

// ErrInvalidLimit is returned when an entries page size is out of range.
var ErrInvalidLimit = errors.New("limit must be between 1 and 200")

// Service exposes account operations backed by the ledger.
type Service struct {
    ledger ledger.Ledger
    logger *slog.Logger
}

// NewService builds an account service instance.
func NewService(l ledger.Ledger, logger *slog.Logger) *Service {
    if logger == nil {
        logger = slog.Default()
    }
    return &Service{ledger: l, logger: logger}
}

// Balance is the public view of an account balance.
type Balance struct {
    AccountID string
    Amount    decimal.Decimal
    Currency  string
}

// Create opens an account with a zero balance.
func (s *Service) Create(ctx context.Context, userID, currency string) (ledger.Account, error) {
    currency = strings.TrimSpace(currency)
    acc, err := s.ledger.CreateAccount(ctx, userID, currency)
    if err != nil {
        return ledger.Account{}, err
    }
    s.logger.InfoContext(ctx, "account created", "account_id", acc.ID, "user_id", userID, "currency", currency)
    return acc, nil
}

// Balance returns the current balance of the account.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
    acc, err := s.ledger.Account(ctx, id)
    if err != nil {
        return Balance{}, err
    }
    return Balance{AccountID: acc.ID, Amount: acc.Balance, Currency: acc.Currency}, nil
}

// Entries lists the newest ledger entries of the account. A zero limit selects
// ledger.DefaultEntriesLimit.
func (s *Service) Entries(ctx context.Context, id string, limit int) ([]ledger.Entry, error) {
    if limit < 0 || limit > MaxEntriesLimit {
        return nil, ErrInvalidLimit
    }
    return s.ledger.Entries(ctx, id, limit)
}
