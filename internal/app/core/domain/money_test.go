package domain

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_RoundHalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"50", "50.00"},
		{"50.004", "50.00"},
		{"50.005", "50.01"},
		{"0.125", "0.13"},
		{"0.135", "0.14"},
		{"2.675", "2.68"},
		{"-2.675", "-2.68"},
		{"1250.75", "1250.75"},
		{"0.0049999999999999", "0.00"},
		{"123456789.123456789", "123456789.12"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Normalize(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.want, got.StringFixed(CurrencyPlaces))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, s := range []string{"0", "0.005", "1.995", "-7.125", "99999.999", "3.14159"} {
		once := Normalize(decimal.RequireFromString(s))
		twice := Normalize(once)
		assert.True(t, once.Equal(twice), "normalize not idempotent for %s", s)
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "0.00", Money(0).String())
	assert.Equal(t, "550.00", Money(55000).String())
	assert.Equal(t, "1250.75", Money(125075).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "-1.50", Money(-150).String())
}

func TestNewAmount(t *testing.T) {
	m, err := NewAmount(decimal.RequireFromString("50.755"))
	require.NoError(t, err)
	assert.Equal(t, Money(5076), m)

	for _, s := range []string{"0", "-1", "0.004", "-0.01"} {
		_, err := NewAmount(decimal.RequireFromString(s))
		assert.ErrorIs(t, err, ErrInvalidAmount, s)
	}

	_, err = NewAmount(decimal.RequireFromString("1e30"))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Contains(t, err.Error(), "out of range")
}

func TestNewAmount_ExtremeExponents(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
		want    Money
	}{
		{"1e100000000", true, 0},
		{"-1e100000000", true, 0},
		{"1e-100000000", true, 0},
		{"0e100000000", true, 0},
		{"9e16", false, 9e18},
		{"1e17", true, 0},
		{"5e-3", false, 1},
		{"4e-3", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := decimal.RequireFromString(tt.in)
			done := make(chan struct{})
			var m Money
			var err error
			go func() {
				defer close(done)
				m, err = NewAmount(d)
			}()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatalf("NewAmount(%s) did not return", tt.in)
			}
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestNormalize_ExtremeExponents(t *testing.T) {
	assert.Equal(t, "0.00", Normalize(decimal.RequireFromString("-3e-100000000")).StringFixed(CurrencyPlaces))
	assert.True(t, Normalize(decimal.RequireFromString("7e100000000")).Equal(decimal.New(7, 100000000)))
}

func TestParseAmount(t *testing.T) {
	m, err := ParseAmount("1.00")
	require.NoError(t, err)
	assert.Equal(t, "1.00", m.String())

	_, err = ParseAmount("abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ParseAmount("")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAccount_DepositWithdraw(t *testing.T) {
	acc := NewAccount("1001", 50000)

	require.NoError(t, acc.Deposit(5000))
	assert.Equal(t, Money(55000), acc.Balance)

	require.NoError(t, acc.Withdraw(5000))
	assert.Equal(t, Money(50000), acc.Balance)

	assert.ErrorIs(t, acc.Withdraw(50001), ErrInsufficientFunds)
	assert.Equal(t, Money(50000), acc.Balance)

	require.NoError(t, acc.Withdraw(50000))
	assert.Equal(t, Money(0), acc.Balance)

	assert.ErrorIs(t, acc.Deposit(0), ErrInvalidAmount)
	assert.ErrorIs(t, acc.Withdraw(-1), ErrInvalidAmount)

	rich := NewAccount("1002", math.MaxInt64-1)
	err := rich.Deposit(2)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Contains(t, err.Error(), "balance overflow")
	assert.Equal(t, Money(math.MaxInt64-1), rich.Balance)
}

func TestTransactionType_String(t *testing.T) {
	assert.Equal(t, "deposit", TransactionTypeDeposit.String())
	assert.Equal(t, "withdraw", TransactionTypeWithdraw.String())

	text, err := TransactionTypeWithdraw.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "withdraw", string(text))
}
