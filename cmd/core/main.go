package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-atm/config"
	grpc_adapter "github.com/JoeShih716/go-mem-atm/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-mem-atm/internal/app/core/adapter/in/http"
	journal_adapter "github.com/JoeShih716/go-mem-atm/internal/app/core/adapter/out/journal"
	memory_adapter "github.com/JoeShih716/go-mem-atm/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-mem-atm/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-mem-atm/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-atm/internal/app/core/idempotency"
	"github.com/JoeShih716/go-mem-atm/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-atm/pkg/journal"
	"github.com/JoeShih716/go-mem-atm/pkg/logger"
	"github.com/JoeShih716/go-mem-atm/pkg/mysql"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to config yaml")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("server exited")
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 稽核日誌 (選用)
	var ledgerOpts []memory_adapter.Option
	if cfg.Journal.Path != "" {
		w, err := journal.Open(cfg.Journal.Path, journal.WithBuffer(cfg.Journal.Buffer))
		if err != nil {
			return err
		}
		w.Start(context.Background())
		defer func() {
			if err := w.Close(); err != nil {
				log.Warn("close journal", zap.Error(err))
			}
			log.Info("journal closed",
				zap.Int64("written", w.Written()),
				zap.Int64("dropped", w.Dropped()),
				zap.Int64("failed", w.Failed()),
			)
		}()
		ledgerOpts = append(ledgerOpts, memory_adapter.WithObserver(journal_adapter.NewObserver(w)))
		log.Info("journal enabled", zap.String("path", cfg.Journal.Path))
	}

	// 3. 帳本與冪等快取
	ledger := memory_adapter.NewMutexLedger(ledgerOpts...)
	idem := idempotency.New[domain.BalanceSnapshot](idempotency.WithTTL(cfg.Idempotency.TTL))
	core := usecase.NewCoreUseCase(ledger, idem)

	// 4. 載入帳戶
	accounts, err := loadAccounts(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := core.SeedAccounts(ctx, accounts); err != nil {
		return err
	}
	log.Info("accounts loaded", zap.Int("count", len(accounts)))

	// 5. gRPC
	grpcServer, healthServer := grpc_adapter.NewServer(core, log.Named("grpc"))
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return err
	}
	errCh := make(chan error, 2)
	go func() {
		log.Info("starting grpc server", zap.String("addr", cfg.GRPC.Addr))
		errCh <- grpcServer.Serve(lis)
	}()

	// 6. REST
	httpServer := http_adapter.NewServer(core, log.Named("http"))
	app := httpServer.App()
	if cfg.HTTP.IsEnabled() {
		go func() {
			log.Info("starting http server", zap.String("addr", cfg.HTTP.Addr))
			errCh <- app.Listen(cfg.HTTP.Addr)
		}()
	}

	// Graceful Shutdown
	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err = <-errCh:
		log.Error("server stopped unexpectedly", zap.Error(err))
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if cfg.HTTP.IsEnabled() {
		if shutdownErr := app.ShutdownWithContext(shutdownCtx); shutdownErr != nil {
			log.Warn("http shutdown", zap.Error(shutdownErr))
		}
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// loadAccounts MySQL 啟用時從 accounts table 讀取，否則使用設定檔
func loadAccounts(ctx context.Context, cfg config.Config, log *zap.Logger) ([]domain.Account, error) {
	if !cfg.MySQL.Enabled {
		return cfg.SeedAccounts()
	}

	client, err := mysql.NewClient(ctx, cfg.MySQL, log.Named("mysql"))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn("close mysql", zap.Error(err))
		}
	}()
	log.Info("connected to mysql", zap.String("host", cfg.MySQL.Host))

	return mysql_adapter.NewAccountRepository(client).LoadAccounts(ctx)
}
