package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-mem-atm/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-atm/internal/app/core/usecase"
)

// accountState 單一帳戶的餘額與稽核紀錄，只能在持有該帳戶鎖時讀寫
type accountState struct {
	account      domain.Account
	transactions []domain.Transaction
}

// MutexLedger 是一個使用 per-account Mutex 實現的帳本
//
// 結構:
//
//	accounts: 帳戶資料 Map (mu 保護 Map 本身)
//	locks: 帳戶 ID 對應的鎖，LoadOrStore 保證同一帳戶只會有一把鎖
//	observer: 交易寫入後的通知 (Optional)
type MutexLedger struct {
	mu       sync.RWMutex
	accounts map[string]*accountState
	locks    sync.Map // map[string]*sync.RWMutex

	now      func() time.Time
	newID    func() uuid.UUID
	observer usecase.TransactionObserver
}

// Option 定義了 MutexLedger 的配置選項函數
type Option func(*MutexLedger)

// WithClock 設定交易時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(m *MutexLedger) {
		m.now = now
	}
}

// WithObserver 設定交易寫入後的通知對象
func WithObserver(observer usecase.TransactionObserver) Option {
	return func(m *MutexLedger) {
		m.observer = observer
	}
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	opts: 可選的配置
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
func NewMutexLedger(opts ...Option) *MutexLedger {
	ledger := &MutexLedger{
		accounts: make(map[string]*accountState),
		now:      time.Now,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger
}

// OpenAccount 建立帳戶
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//	balance: 初始餘額 (不可為負)
//
// 回傳:
//
//	error: ErrInvalidAmount / ErrAccountAlreadyExists
func (m *MutexLedger) OpenAccount(ctx context.Context, accountID string, balance domain.Money) error {
	if balance < 0 {
		return domain.ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; ok {
		return domain.ErrAccountAlreadyExists
	}
	m.accounts[accountID] = &accountState{
		account:      *domain.NewAccount(accountID, balance),
		transactions: make([]domain.Transaction, 0),
	}
	return nil
}

// GetBalance 取得指定帳戶的當前餘額
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//
// 回傳:
//
//	domain.Money: 帳戶餘額
//	error: 查詢錯誤 (如帳戶不存在)
func (m *MutexLedger) GetBalance(ctx context.Context, accountID string) (domain.Money, error) {
	state, lock, err := m.lookup(accountID)
	if err != nil {
		return 0, err
	}

	lock.RLock()
	defer lock.RUnlock()
	return state.account.Balance, nil
}

// Deposit 存款
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//	amount: 存款金額，正規化後必須 > 0
//
// 回傳:
//
//	domain.Money: 存款後餘額
//	error: ErrInvalidAmount / ErrAccountNotFound
func (m *MutexLedger) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (domain.Money, error) {
	return m.post(accountID, domain.TransactionTypeDeposit, amount)
}

// Withdraw 提款
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//	amount: 提款金額，正規化後必須 > 0
//
// 回傳:
//
//	domain.Money: 提款後餘額
//	error: ErrInvalidAmount / ErrAccountNotFound / ErrInsufficientFunds
func (m *MutexLedger) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (domain.Money, error) {
	return m.post(accountID, domain.TransactionTypeWithdraw, amount)
}

// ListTransactions 回傳交易紀錄的複本，之後的交易不會影響回傳結果
func (m *MutexLedger) ListTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	state, lock, err := m.lookup(accountID)
	if err != nil {
		return nil, err
	}

	lock.RLock()
	defer lock.RUnlock()
	snapshot := make([]domain.Transaction, len(state.transactions))
	copy(snapshot, state.transactions)
	return snapshot, nil
}

// post 執行存提款核心邏輯
// 讀餘額、檢查、更新、寫紀錄都在同一把帳戶鎖內完成
func (m *MutexLedger) post(accountID string, txType domain.TransactionType, amount decimal.Decimal) (domain.Money, error) {
	value, err := domain.NewAmount(amount)
	if err != nil {
		return 0, err
	}

	state, lock, err := m.lookup(accountID)
	if err != nil {
		return 0, err
	}

	lock.Lock()
	defer lock.Unlock()

	// 先在複本上套用，失敗時帳戶狀態不變
	account := state.account
	switch txType {
	case domain.TransactionTypeDeposit:
		err = account.Deposit(value)
	case domain.TransactionTypeWithdraw:
		err = account.Withdraw(value)
	}
	if err != nil {
		return 0, err
	}

	tran := domain.Transaction{
		ID:        m.newID(),
		Type:      txType,
		Amount:    value,
		Balance:   account.Balance,
		CreatedAt: m.now().UTC(),
	}
	state.account = account
	state.transactions = append(state.transactions, tran)

	if m.observer != nil {
		m.observer.OnTransaction(accountID, tran)
	}
	return account.Balance, nil
}

// lookup 找出帳戶狀態與該帳戶的鎖
// 不存在的帳戶不會建立鎖
func (m *MutexLedger) lookup(accountID string) (*accountState, *sync.RWMutex, error) {
	m.mu.RLock()
	state, ok := m.accounts[accountID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, domain.ErrAccountNotFound
	}
	return state, m.lockFor(accountID), nil
}

// lockFor 取得或建立帳戶鎖 (Fast path: Load，否則 LoadOrStore)
func (m *MutexLedger) lockFor(accountID string) *sync.RWMutex {
	if v, ok := m.locks.Load(accountID); ok {
		return v.(*sync.RWMutex)
	}
	v, _ := m.locks.LoadOrStore(accountID, &sync.RWMutex{})
	return v.(*sync.RWMutex)
}

var _ usecase.Ledger = (*MutexLedger)(nil)
