package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionType 交易類型
// 為了節省記憶體，使用 uint8
type TransactionType uint8

const (
	// 存款
	TransactionTypeDeposit TransactionType = 1
	// 提款
	TransactionTypeWithdraw TransactionType = 2
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "deposit"
	case TransactionTypeWithdraw:
		return "withdraw"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// MarshalText 讓 JSON 輸出 "deposit" / "withdraw"
func (t TransactionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Transaction 稽核紀錄，append 後不再修改
type Transaction struct {
	// CreatedAt: 交易時間 (UTC)
	CreatedAt time.Time
	// Amount: 交易金額 (> 0)
	Amount Money
	// Balance: 套用本筆交易後的餘額
	Balance Money
	// ID: 交易追蹤號
	ID uuid.UUID
	// Type: 放到最後面，利用 Padding 空間
	Type TransactionType
}
