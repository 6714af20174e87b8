package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that sets the balance of an existing account when
// using the in-memory ledger.
func SeedBalance(l Ledger, accountID string, amount decimal.Decimal) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if acc, exists := mem.accounts[accountID]; exists {
			acc.Balance = amount
			mem.accounts[accountID] = acc
		}
	}
}
