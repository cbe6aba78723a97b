package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-mem-atm/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-atm/internal/app/core/idempotency"
)

// CoreUseCase 是核心業務邏輯層
// 變更操作經過冪等快取，查詢直接讀帳本
type CoreUseCase struct {
	ledger Ledger
	idem   *idempotency.Cache[domain.BalanceSnapshot]
}

func NewCoreUseCase(ledger Ledger, idem *idempotency.Cache[domain.BalanceSnapshot]) *CoreUseCase {
	if idem == nil {
		idem = idempotency.New[domain.BalanceSnapshot]()
	}
	return &CoreUseCase{
		ledger: ledger,
		idem:   idem,
	}
}

// SeedAccounts 載入初始帳戶
func (c *CoreUseCase) SeedAccounts(ctx context.Context, accounts []domain.Account) error {
	for _, acc := range accounts {
		if err := c.ledger.OpenAccount(ctx, acc.ID, acc.Balance); err != nil {
			return err
		}
	}
	return nil
}

// GetAccountBalance 取得帳戶餘額
func (c *CoreUseCase) GetAccountBalance(ctx context.Context, accountID string) (domain.Money, error) {
	return c.ledger.GetBalance(ctx, accountID)
}

// Deposit 存款，bool 表示是否為冪等重播
func (c *CoreUseCase) Deposit(ctx context.Context, idempotencyKey, accountID string, amount decimal.Decimal) (domain.BalanceSnapshot, bool, error) {
	return c.idem.Do(idempotencyKey, func() (domain.BalanceSnapshot, error) {
		balance, err := c.ledger.Deposit(ctx, accountID, amount)
		if err != nil {
			return domain.BalanceSnapshot{}, err
		}
		return domain.BalanceSnapshot{AccountID: accountID, Balance: balance}, nil
	})
}

// Withdraw 提款，bool 表示是否為冪等重播
func (c *CoreUseCase) Withdraw(ctx context.Context, idempotencyKey, accountID string, amount decimal.Decimal) (domain.BalanceSnapshot, bool, error) {
	return c.idem.Do(idempotencyKey, func() (domain.BalanceSnapshot, error) {
		balance, err := c.ledger.Withdraw(ctx, accountID, amount)
		if err != nil {
			return domain.BalanceSnapshot{}, err
		}
		return domain.BalanceSnapshot{AccountID: accountID, Balance: balance}, nil
	})
}

// ListTransactions 取得交易紀錄
func (c *CoreUseCase) ListTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	return c.ledger.ListTransactions(ctx, accountID)
}
