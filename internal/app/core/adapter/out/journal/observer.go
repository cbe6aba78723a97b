package journal

import (
	"time"

	"github.com/JoeShih716/go-mem-atm/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-atm/internal/app/core/usecase"
)

// appender 是 pkg/journal.Writer 需要的部分
type appender interface {
	Append(v any) bool
}

// Record 稽核日誌的一行
type Record struct {
	ID            string    `json:"id"`
	AccountNumber string    `json:"account_number"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Balance       string    `json:"balance"`
	Timestamp     time.Time `json:"ts"`
}

// Observer 把帳本交易轉成 Record 寫入日誌
type Observer struct {
	out appender
}

func NewObserver(out appender) *Observer {
	return &Observer{out: out}
}

// OnTransaction 在帳戶鎖內被呼叫，Append 不會阻塞
func (o *Observer) OnTransaction(accountID string, tran domain.Transaction) {
	o.out.Append(Record{
		ID:            tran.ID.String(),
		AccountNumber: accountID,
		Type:          tran.Type.String(),
		Amount:        tran.Amount.String(),
		Balance:       tran.Balance.String(),
		Timestamp:     tran.CreatedAt,
	})
}

var _ usecase.TransactionObserver = (*Observer)(nil)
