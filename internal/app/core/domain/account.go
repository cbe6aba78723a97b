package domain

import (
	"math"

	"github.com/pkg/errors"
)

// Account 帳戶，ID 建立後不可變更
type Account struct {
	ID      string
	Balance Money
}

func NewAccount(id string, balance Money) *Account {
	return &Account{
		ID:      id,
		Balance: balance,
	}
}

// Deposit 存款
func (a *Account) Deposit(amount Money) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Balance > math.MaxInt64-amount {
		return errors.Wrap(ErrInvalidAmount, "balance overflow")
	}

	a.Balance = a.Balance + amount
	return nil
}

// Withdraw 提款，餘額必須 >= amount
func (a *Account) Withdraw(amount Money) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if a.Balance < amount {
		return ErrInsufficientFunds
	}

	a.Balance = a.Balance - amount
	return nil
}

// BalanceSnapshot 存提款成功後的結果，也是冪等快取保存的內容
type BalanceSnapshot struct {
	AccountID string
	Balance   Money
}
