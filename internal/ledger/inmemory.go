package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryLedger struct {
	mu         sync.RWMutex
	accounts   map[string]Account
	locks      map[string]*sync.Mutex
	transfers  map[string]Transfer
	byKey      map[string]string
	entries    map[string][]Entry
	byTransfer map[string][]Entry
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests
// and for running the service in development without a database.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		accounts:   make(map[string]Account),
		locks:      make(map[string]*sync.Mutex),
		transfers:  make(map[string]Transfer),
		byKey:      make(map[string]string),
		entries:    make(map[string][]Entry),
		byTransfer: make(map[string][]Entry),
	}
}

func (l *inMemoryLedger) CreateAccount(_ context.Context, userID, currency string) (Account, error) {
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

	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[acc.ID] = acc
	l.locks[acc.ID] = &sync.Mutex{}
	return acc, nil
}

func (l *inMemoryLedger) Account(_ context.Context, id string) (Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (l *inMemoryLedger) TransferByIdempotencyKey(_ context.Context, key string) (Transfer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byKey[key]
	if !ok {
		return Transfer{}, ErrTransferNotFound
	}
	return l.transfers[id], nil
}

func (l *inMemoryLedger) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if err := req.validate(); err != nil {
		return TransferResult{}, err
	}

	first, second := lockOrder(req.FromAccountID, req.ToAccountID)
	l.mu.RLock()
	firstLock, okFirst := l.locks[first]
	secondLock, okSecond := l.locks[second]
	l.mu.RUnlock()
	if !okFirst || !okSecond {
		return TransferResult{}, ErrAccountNotFound
	}

	firstLock.Lock()
	defer firstLock.Unlock()
	secondLock.Lock()
	defer secondLock.Unlock()

	if err := ctx.Err(); err != nil {
		return TransferResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if req.IdempotencyKey != "" {
		if id, exists := l.byKey[req.IdempotencyKey]; exists {
			return TransferResult{Transfer: l.transfers[id]}, ErrDuplicateTransaction
		}
	}

	from := l.accounts[req.FromAccountID]
	to := l.accounts[req.ToAccountID]
	if from.Currency != req.Currency || to.Currency != req.Currency {
		return TransferResult{}, ErrCurrencyMismatch
	}
	if from.Balance.LessThan(req.Amount) {
		return TransferResult{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	transfer := Transfer{
		ID:             uuid.NewString(),
		FromAccountID:  from.ID,
		ToAccountID:    to.ID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         StatusCompleted,
		Type:           req.Type,
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	from.Balance = from.Balance.Sub(req.Amount)
	from.UpdatedAt = now
	to.Balance = to.Balance.Add(req.Amount)
	to.UpdatedAt = now

	debit := Entry{
		ID:           uuid.NewString(),
		AccountID:    from.ID,
		Amount:       req.Amount.Neg(),
		BalanceAfter: from.Balance,
		Type:         EntryDebit,
		Description:  debitDescription(req),
		ReferenceID:  transfer.ID,
		CreatedAt:    now,
	}
	credit := Entry{
		ID:           uuid.NewString(),
		AccountID:    to.ID,
		Amount:       req.Amount,
		BalanceAfter: to.Balance,
		Type:         EntryCredit,
		Description:  creditDescription(req),
		ReferenceID:  transfer.ID,
		CreatedAt:    now,
	}

	l.accounts[from.ID] = from
	l.accounts[to.ID] = to
	l.transfers[transfer.ID] = transfer
	if req.IdempotencyKey != "" {
		l.byKey[req.IdempotencyKey] = transfer.ID
	}
	l.entries[from.ID] = append(l.entries[from.ID], debit)
	l.entries[to.ID] = append(l.entries[to.ID], credit)
	l.byTransfer[transfer.ID] = []Entry{debit, credit}

	return TransferResult{Transfer: transfer, Debit: debit, Credit: credit}, nil
}

func (l *inMemoryLedger) TransferByID(_ context.Context, id string) (Transfer, []Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.transfers[id]
	if !ok {
		return Transfer{}, nil, ErrTransferNotFound
	}
	return t, append([]Entry(nil), l.byTransfer[id]...), nil
}

func (l *inMemoryLedger) Entries(_ context.Context, accountID string, limit int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.accounts[accountID]; !ok {
		return nil, ErrAccountNotFound
	}

	history := l.entries[accountID]
	limit = normalizeLimit(limit)
	out := make([]Entry, 0, min(limit, len(history)))
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, history[i])
	}
	return out, nil
}
