package transfers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/payvost/corebanking/internal/ledger"
	"github.com/payvost/corebanking/internal/notification"
)

// DefaultTimeout bounds how long a transfer may hold account row locks.
const DefaultTimeout = 10 * time.Second

// Kind classifies a failed transfer for status mapping.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindStore             Kind = "store"
)

// Service moves funds between accounts through the ledger.
type Service struct {
	ledger   ledger.Ledger
	notifier notification.Notifier
	logger   *slog.Logger
	timeout  time.Duration
}

// NewService constructs a transfer service. A non-positive timeout falls back to DefaultTimeout.
func NewService(l ledger.Ledger, notifier notification.Notifier, logger *slog.Logger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: l, notifier: notifier, logger: logger, timeout: timeout}
}

// TransferInput captures an unvalidated transfer instruction.
type TransferInput struct {
	FromAccountID  string
	ToAccountID    string
	Amount         string
	Currency       string
	Type           string
	IdempotencyKey string
	Description    string
}

// Result is the outcome of TransferFunds. Failures never carry partial state.
type Result struct {
	Success    bool
	TransferID string
	Error      string
	Kind       Kind
	Replayed   bool
	// Err is the underlying cause and must not be shown to clients.
	Err error
}

// Detail is a transfer together with its ledger entries.
type Detail struct {
	Transfer ledger.Transfer
	Entries  []ledger.Entry
}

// TransferFunds validates the input, short-circuits on a known idempotency key
// and otherwise posts the transfer in a single ledger transaction.
func (s *Service) TransferFunds(ctx context.Context, in TransferInput) Result {
	amount, err := ledger.ParseAmount(in.Amount)
	if err != nil {
		return s.fail(ctx, in, err)
	}
	kind, err := ledger.ParseTransferType(in.Type)
	if err != nil {
		return s.fail(ctx, in, err)
	}
	if !ledger.ValidCurrency(in.Currency) {
		return s.fail(ctx, in, ledger.ErrInvalidCurrency)
	}
	if in.FromAccountID == in.ToAccountID {
		return s.fail(ctx, in, ledger.ErrSameAccount)
	}

	if in.IdempotencyKey != "" {
		existing, err := s.ledger.TransferByIdempotencyKey(ctx, in.IdempotencyKey)
		switch {
		case err == nil:
			s.logger.InfoContext(ctx, "transfer replayed",
				"transfer_id", existing.ID, "idempotency_key", in.IdempotencyKey)
			return Result{Success: true, TransferID: existing.ID, Replayed: true}
		case !errors.Is(err, ledger.ErrTransferNotFound):
			return s.fail(ctx, in, fmt.Errorf("idempotency lookup: %w", err))
		}
	}

	txCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.ledger.Transfer(txCtx, ledger.TransferRequest{
		FromAccountID:  in.FromAccountID,
		ToAccountID:    in.ToAccountID,
		Amount:         amount,
		Currency:       in.Currency,
		Type:           kind,
		IdempotencyKey: in.IdempotencyKey,
		Description:    in.Description,
	})
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		s.logger.InfoContext(ctx, "transfer replayed after conflict",
			"transfer_id", res.Transfer.ID, "idempotency_key", in.IdempotencyKey)
		return Result{Success: true, TransferID: res.Transfer.ID, Replayed: true}
	}
	if err != nil {
		return s.fail(ctx, in, err)
	}

	s.logger.InfoContext(ctx, "transfer completed",
		"transfer_id", res.Transfer.ID,
		"from_account_id", in.FromAccountID,
		"to_account_id", in.ToAccountID,
		"amount", ledger.FormatAmount(amount),
		"currency", in.Currency,
		"type", string(kind),
	)
	s.notify(ctx, res)

	return Result{Success: true, TransferID: res.Transfer.ID}
}

// Get returns a transfer and its debit and credit entries.
func (s *Service) Get(ctx context.Context, id string) (Detail, error) {
	t, entries, err := s.ledger.TransferByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Transfer: t, Entries: entries}, nil
}

func (s *Service) fail(ctx context.Context, in TransferInput, err error) Result {
	kind, msg := classify(err)
	level := slog.LevelWarn
	if kind == KindStore {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "transfer failed",
		"from_account_id", in.FromAccountID,
		"to_account_id", in.ToAccountID,
		"idempotency_key", in.IdempotencyKey,
		"kind", string(kind),
		"error", err,
	)
	return Result{Success: false, Error: msg, Kind: kind, Err: err}
}

func (s *Service) notify(ctx context.Context, res ledger.TransferResult) {
	if s.notifier == nil {
		return
	}
	t := res.Transfer
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindTransferCompleted,
		Destination: t.ToAccountID,
		Body:        fmt.Sprintf("received %s %s from %s", ledger.FormatAmount(t.Amount), t.Currency, t.FromAccountID),
		Attributes: map[string]string{
			"transfer_id":   t.ID,
			"balance_after": ledger.FormatAmount(res.Credit.BalanceAfter),
		},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "transfer notification failed", "transfer_id", t.ID, "error", err)
	}
}

func classify(err error) (Kind, string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return KindValidation, "Invalid amount"
	case errors.Is(err, ledger.ErrSameAccount):
		return KindValidation, "Cannot transfer to the same account"
	case errors.Is(err, ledger.ErrCurrencyMismatch):
		return KindValidation, "Currency mismatch"
	case errors.Is(err, ledger.ErrInvalidCurrency):
		return KindValidation, "Invalid currency"
	case errors.Is(err, ledger.ErrInvalidTransferType):
		return KindValidation, "Invalid transfer type"
	case errors.Is(err, ledger.ErrAccountNotFound):
		return KindNotFound, "Account not found"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return KindInsufficientFunds, "Insufficient funds"
	default:
		return KindStore, "Transfer failed"
	}
}
