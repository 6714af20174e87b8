package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	valid := map[string]string{
		"50":                             "50.00000000",
		" 0.5 ":                          "0.50000000",
		"0.00000001":                     "0.00000001",
		"1234.5678":                      "1234.56780000",
		"10.10000000":                    "10.10000000",
		"1e3":                            "1000.00000000",
		"5E-8":                           "0.00000005",
		"999999999999999999999999999999": "999999999999999999999999999999.00000000",
	}
	for raw, want := range valid {
		d, err := ParseAmount(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, FormatAmount(d), raw)
	}

	invalid := []string{"", "  ", "abc", "0", "0.00", "-5", "1.000000001", "NaN", "Infinity", "1e",
		"1e999999999", "1e-999999999", "1e30", "1000000000000000000000000000000"}
	for _, raw := range invalid {
		_, err := ParseAmount(raw)
		assert.True(t, errors.Is(err, ErrInvalidAmount), "expected %q to be rejected, got %v", raw, err)
	}
}

func TestParseTransferType(t *testing.T) {
	tt, err := ParseTransferType("")
	require.NoError(t, err)
	assert.Equal(t, TypeInternalTransfer, tt)

	tt, err = ParseTransferType("ATM_WITHDRAWAL")
	require.NoError(t, err)
	assert.Equal(t, TypeATMWithdrawal, tt)

	_, err = ParseTransferType("internal_transfer")
	assert.ErrorIs(t, err, ErrInvalidTransferType)
}

func TestValidCurrency(t *testing.T) {
	assert.True(t, ValidCurrency("USD"))
	assert.True(t, ValidCurrency("NGN"))
	assert.False(t, ValidCurrency("usd"))
	assert.False(t, ValidCurrency("US"))
	assert.False(t, ValidCurrency("EURO"))
}

func TestLockOrder(t *testing.T) {
	first, second := lockOrder("b", "a")
	assert.Equal(t, "a", first)
	assert.Equal(t, "b", second)

	first, second = lockOrder("a", "b")
	assert.Equal(t, "a", first)
	assert.Equal(t, "b", second)
}
