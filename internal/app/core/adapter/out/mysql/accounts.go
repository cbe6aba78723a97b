package mysql

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-mem-atm/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-atm/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-atm/pkg/mysql"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	AccountNumber string          `gorm:"column:account_number;primaryKey;size:64"`
	Balance       decimal.Decimal `gorm:"column:balance;type:decimal(20,2);not null"`
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// AccountRepository 啟動時從 MySQL 讀取初始帳戶 (只讀，不回寫)
type AccountRepository struct {
	client *mysql.Client
}

func NewAccountRepository(client *mysql.Client) *AccountRepository {
	return &AccountRepository{
		client: client,
	}
}

// LoadAccounts 載入所有帳戶，依帳號排序
func (r *AccountRepository) LoadAccounts(ctx context.Context) ([]domain.Account, error) {
	var rows []sqlAccount
	err := r.client.DB().WithContext(ctx).
		Order("account_number").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "select accounts")
	}
	return toAccounts(rows)
}

// toAccounts 轉換並正規化餘額，負數餘額視為資料錯誤
func toAccounts(rows []sqlAccount) ([]domain.Account, error) {
	accounts := make([]domain.Account, 0, len(rows))
	for _, row := range rows {
		balance, err := domain.MoneyFromDecimal(row.Balance)
		if err != nil || balance < 0 {
			return nil, errors.Wrapf(domain.ErrInvalidAmount, "account %s balance %s", row.AccountNumber, row.Balance)
		}
		accounts = append(accounts, domain.Account{ID: row.AccountNumber, Balance: balance})
	}
	return accounts, nil
}

var _ usecase.AccountSource = (*AccountRepository)(nil)
