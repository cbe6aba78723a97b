package domain

import "errors"

var (
	// ErrInvalidAmount 金額必須為正數且可表示為有限小數
	ErrInvalidAmount = errors.New("amount must be > 0")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("account already exists")
)
