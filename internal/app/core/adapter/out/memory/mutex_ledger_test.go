package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-mem-atm/internal/app/core/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seededLedger(t *testing.T, opts ...Option) *MutexLedger {
	t.Helper()
	ledger := NewMutexLedger(opts...)
	ctx := context.Background()
	require.NoError(t, ledger.OpenAccount(ctx, "1001", 50000))
	require.NoError(t, ledger.OpenAccount(ctx, "1002", 125075))
	require.NoError(t, ledger.OpenAccount(ctx, "9999", 0))
	return ledger
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []domain.Transaction
}

func (r *recordingObserver) OnTransaction(accountID string, tran domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, tran)
}

func TestMutexLedger_DepositScenario(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("UTC+8", 8*3600))
	ledger := seededLedger(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	bal, err := ledger.Deposit(ctx, "1001", dec("50.00"))
	require.NoError(t, err)
	assert.Equal(t, "550.00", bal.String())

	txs, err := ledger.ListTransactions(ctx, "1001")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionTypeDeposit, txs[0].Type)
	assert.Equal(t, "50.00", txs[0].Amount.String())
	assert.Equal(t, "550.00", txs[0].Balance.String())
	assert.Equal(t, time.UTC, txs[0].CreatedAt.Location())
	assert.True(t, fixed.Equal(txs[0].CreatedAt))
	assert.NotEqual(t, uuid.Nil, txs[0].ID)
}

func TestMutexLedger_WithdrawScenario(t *testing.T) {
	ledger := seededLedger(t)
	ctx := context.Background()

	bal, err := ledger.Withdraw(ctx, "1002", dec("50.75"))
	require.NoError(t, err)
	assert.Equal(t, "1200.00", bal.String())

	txs, err := ledger.ListTransactions(ctx, "1002")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionTypeWithdraw, txs[0].Type)
}

func TestMutexLedger_InsufficientFunds(t *testing.T) {
	ledger := seededLedger(t)
	ctx := context.Background()

	_, err := ledger.Withdraw(ctx, "9999", dec("1.00"))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	bal, err := ledger.GetBalance(ctx, "9999")
	require.NoError(t, err)
	assert.Equal(t, "0.00", bal.String())

	txs, err := ledger.ListTransactions(ctx, "9999")
	require.NoError(t, err)
	assert.Empty(t, txs)

	// 剛好等於餘額可以提領
	bal, err = ledger.Withdraw(ctx, "1001", dec("500.00"))
	require.NoError(t, err)
	assert.Equal(t, "0.00", bal.String())
}

func TestMutexLedger_NotFound(t *testing.T) {
	ledger := seededLedger(t)
	ctx := context.Background()

	_, err := ledger.GetBalance(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = ledger.Deposit(ctx, "nope", dec("1"))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = ledger.Withdraw(ctx, "nope", dec("1"))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = ledger.ListTransactions(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, loaded := ledger.locks.Load("nope")
	assert.False(t, loaded, "unknown account must not allocate a lock")
}

func TestMutexLedger_InvalidAmount(t *testing.T) {
	ledger := seededLedger(t)
	ctx := context.Background()

	for _, amount := range []string{"0", "-1", "-0.01", "0.004"} {
		_, err := ledger.Deposit(ctx, "1001", dec(amount))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
		_, err = ledger.Withdraw(ctx, "1001", dec(amount))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
	}

	txs, err := ledger.ListTransactions(ctx, "1001")
	require.NoError(t, err)
	assert.Empty(t, txs)

	bal, err := ledger.GetBalance(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "500.00", bal.String())
}

func TestMutexLedger_NormalizesAmount(t *testing.T) {
	ledger := seededLedger(t)
	ctx := context.Background()

	bal, err := ledger.Deposit(ctx, "9999", dec("0.005"))
	require.NoError(t, err)
	assert.Equal(t, "0.01", bal.String())

	bal, err = ledger.Deposit(ctx, "9999", dec("10.12345"))
	require.NoError(t, err)
	assert.Equal(t, "10.13", bal.String())

	txs, err := ledger.ListTransactions(ctx, "9999")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "10.12", txs[1].Amount.String())
}

func TestMutexLedger_DepositWithdrawInverse(t *testing.T) {
	ledger := seededLedger(t)
	ctx := context.Background()

	for _, amount := range []string{"0.01", "1.23", "999.99", "0.125"} {
		before, err := ledger.GetBalance(ctx, "1002")
		require.NoError(t, err)
		_, err = ledger.Deposit(ctx, "1002", dec(amount))
		require.NoError(t, err)
		after, err := ledger.Withdraw(ctx, "1002", dec(amount))
		require.NoError(t, err)
		assert.Equal(t, before, after, amount)
	}
}

func TestMutexLedger_SnapshotIsolation(t *testing.T) {
	ledger := seededLedger(t)
	ctx := context.Background()

	_, err := ledger.Deposit(ctx, "1001", dec("1"))
	require.NoError(t, err)
	snapshot, err := ledger.ListTransactions(ctx, "1001")
	require.NoError(t, err)

	_, err = ledger.Deposit(ctx, "1001", dec("2"))
	require.NoError(t, err)
	snapshot[0].Amount = 0

	assert.Len(t, snapshot, 1)
	fresh, err := ledger.ListTransactions(ctx, "1001")
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, "1.00", fresh[0].Amount.String())
}

func TestMutexLedger_OpenAccount(t *testing.T) {
	ledger := NewMutexLedger()
	ctx := context.Background()

	require.NoError(t, ledger.OpenAccount(ctx, "A", 0))
	assert.ErrorIs(t, ledger.OpenAccount(ctx, "A", 100), domain.ErrAccountAlreadyExists)
	assert.ErrorIs(t, ledger.OpenAccount(ctx, "B", -1), domain.ErrInvalidAmount)
}

func TestMutexLedger_Observer(t *testing.T) {
	observer := &recordingObserver{}
	ledger := seededLedger(t, WithObserver(observer))
	ctx := context.Background()

	_, err := ledger.Deposit(ctx, "1001", dec("5"))
	require.NoError(t, err)
	_, err = ledger.Withdraw(ctx, "9999", dec("5"))
	require.Error(t, err)

	require.Len(t, observer.calls, 1)
	assert.Equal(t, "505.00", observer.calls[0].Balance.String())
}

func TestMutexLedger_ConcurrentMutations(t *testing.T) {
	ledger := seededLedger(t)
	ctx := context.Background()

	const workers = 50
	const perWorker = 40

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if (i+j)%2 == 0 {
					_, _ = ledger.Deposit(ctx, "9999", dec("1.00"))
				} else {
					_, err := ledger.Withdraw(ctx, "9999", dec("1.50"))
					if err != nil {
						assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
					}
				}
				_, _ = ledger.Deposit(ctx, "1002", dec("0.01"))
			}
		}(i)
	}

	// 讀取不能看到交易進行到一半的狀態
	done := make(chan struct{})
	go func() {
		defer close(done)
		for k := 0; k < 200; k++ {
			bal, err := ledger.GetBalance(ctx, "9999")
			assert.NoError(t, err)
			assert.GreaterOrEqual(t, int64(bal), int64(0))
		}
	}()

	wg.Wait()
	<-done

	txs, err := ledger.ListTransactions(ctx, "9999")
	require.NoError(t, err)
	bal, err := ledger.GetBalance(ctx, "9999")
	require.NoError(t, err)

	// 由交易紀錄重算餘額，並驗證每一步都不為負
	running := domain.Money(0)
	for _, tx := range txs {
		switch tx.Type {
		case domain.TransactionTypeDeposit:
			running += tx.Amount
		case domain.TransactionTypeWithdraw:
			running -= tx.Amount
		}
		assert.Equal(t, running, tx.Balance)
		assert.GreaterOrEqual(t, int64(tx.Balance), int64(0))
	}
	require.NotEmpty(t, txs)
	assert.Equal(t, bal, txs[len(txs)-1].Balance)

	other, err := ledger.GetBalance(ctx, "1002")
	require.NoError(t, err)
	assert.Equal(t, domain.Money(125075+workers*perWorker), other)
}

func TestMutexLedger_LockForConverges(t *testing.T) {
	ledger := NewMutexLedger()

	const goroutines = 64
	locks := make([]*sync.RWMutex, goroutines)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			locks[i] = ledger.lockFor("new-account")
		}(i)
	}
	close(start)
	wg.Wait()

	for _, l := range locks {
		assert.Same(t, locks[0], l)
	}
}
