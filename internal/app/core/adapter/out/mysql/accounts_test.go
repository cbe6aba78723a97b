package mysql

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-mem-atm/internal/app/core/domain"
)

func TestToAccounts(t *testing.T) {
	accounts, err := toAccounts([]sqlAccount{
		{AccountNumber: "1001", Balance: decimal.RequireFromString("500")},
		{AccountNumber: "1002", Balance: decimal.RequireFromString("1250.745")},
		{AccountNumber: "9999", Balance: decimal.Zero},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.Account{
		{ID: "1001", Balance: 50000},
		{ID: "1002", Balance: 125075},
		{ID: "9999", Balance: 0},
	}, accounts)
}

func TestToAccounts_RejectsNegative(t *testing.T) {
	_, err := toAccounts([]sqlAccount{{AccountNumber: "x", Balance: decimal.RequireFromString("-0.01")}})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestSQLAccount_TableName(t *testing.T) {
	assert.Equal(t, "accounts", (&sqlAccount{}).TableName())
}
