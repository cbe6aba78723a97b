package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-mem-atm/internal/app/core/domain"
)

// Ledger 是帳務系統的介面
type Ledger interface {
	// OpenAccount 建立帳戶 (啟動時 seed 使用)
	OpenAccount(ctx context.Context, accountID string, balance domain.Money) error
	// GetBalance 取得帳戶餘額
	GetBalance(ctx context.Context, accountID string) (domain.Money, error)
	// Deposit 存款，回傳新餘額
	Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (domain.Money, error)
	// Withdraw 提款，回傳新餘額
	Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (domain.Money, error)
	// ListTransactions 取得帳戶交易紀錄快照 (依寫入順序)
	ListTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error)
}

// TransactionObserver 在交易寫入帳本後被呼叫 (持有帳戶鎖)，實作不可阻塞
type TransactionObserver interface {
	OnTransaction(accountID string, tran domain.Transaction)
}

// AccountSource 提供啟動時的初始帳戶
type AccountSource interface {
	LoadAccounts(ctx context.Context) ([]domain.Account, error)
}
