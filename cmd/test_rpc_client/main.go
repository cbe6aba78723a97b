package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	grpc_adapter "github.com/JoeShih716/go-mem-atm/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-mem-atm/pkg/logger"
	grpc_pool "github.com/JoeShih716/go-mem-atm/pkg/grpc"
)

// 壓測: 對同一帳戶並發存款，部分請求用同一個 idempotency key 重送
// 結束時檢查餘額只增加了「不重複 key」的金額
func main() {
	target := flag.String("target", "localhost:50051", "grpc server address")
	account := flag.String("account", "1001", "account number")
	amount := flag.String("amount", "1.00", "amount per deposit")
	total := flag.Int("n", 100000, "number of deposits")
	concurrency := flag.Int("c", 200, "concurrent workers")
	retryEvery := flag.Int("retry-every", 10, "resend every n-th request with the same key (0 disables)")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	step, err := decimal.NewFromString(*amount)
	if err != nil {
		log.Fatal("invalid amount", zap.Error(err))
	}

	pool := grpc_pool.NewPool(grpc_pool.WithCallOptions(grpc.CallContentSubtype(grpc_adapter.CodecName)))
	defer func() { _ = pool.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	if err := pool.WaitHealthy(ctx, *target, grpc_adapter.ServiceName, 200*time.Millisecond); err != nil {
		log.Fatal("server not ready", zap.Error(err))
	}
	conn, err := pool.GetConnection(*target)
	if err != nil {
		log.Fatal("connect", zap.Error(err))
	}
	client := grpc_adapter.NewLedgerClient(conn)

	before, err := client.GetBalance(ctx, &grpc_adapter.GetBalanceRequest{AccountNumber: *account})
	if err != nil {
		log.Fatal("get balance", zap.Error(err))
	}

	var (
		wg       sync.WaitGroup
		applied  atomic.Int64
		replayed atomic.Int64
		failed   atomic.Int64
	)
	sem := make(chan struct{}, *concurrency)
	req := &grpc_adapter.MoneyChangeRequest{AccountNumber: *account, Amount: *amount}

	startTime := time.Now()
	for i := 0; i < *total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			attempts := 1
			if *retryEvery > 0 && idx%*retryEvery == 0 {
				attempts = 2
			}
			callCtx := metadata.AppendToOutgoingContext(ctx, grpc_adapter.IdempotencyKeyHeader, uuid.NewString())
			for a := 0; a < attempts; a++ {
				var header metadata.MD
				if _, err := client.Deposit(callCtx, req, grpc.Header(&header)); err != nil {
					if failed.Add(1)%1000 == 1 {
						log.Warn("deposit failed", zap.Int("idx", idx), zap.Error(err))
					}
					return
				}
				if vals := header.Get(grpc_adapter.ReplayedHeader); len(vals) > 0 && vals[0] == "true" {
					replayed.Add(1)
				} else {
					applied.Add(1)
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	after, err := client.GetBalance(ctx, &grpc_adapter.GetBalanceRequest{AccountNumber: *account})
	if err != nil {
		log.Fatal("get balance", zap.Error(err))
	}
	start, _ := decimal.NewFromString(before.Balance)
	end, _ := decimal.NewFromString(after.Balance)
	expected := start.Add(step.Mul(decimal.NewFromInt(applied.Load())))

	calls := applied.Load() + replayed.Load() + failed.Load()
	log.Info("load test finished",
		zap.Int64("applied", applied.Load()),
		zap.Int64("replayed", replayed.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", elapsed),
		zap.Float64("tps", float64(calls)/elapsed.Seconds()),
		zap.String("balance_before", before.Balance),
		zap.String("balance_after", after.Balance),
		zap.String("balance_expected", expected.StringFixed(2)),
	)
	if !end.Equal(expected) {
		log.Error("balance mismatch, duplicate deposits detected")
		_ = log.Sync()
		os.Exit(1)
	}
}
