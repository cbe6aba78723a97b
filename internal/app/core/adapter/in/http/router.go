package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-atm/internal/app/core/usecase"
)

// Version 回傳在 /healthz
const Version = "1.1.0"

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
)

// Server REST adapter
type Server struct {
	core *usecase.CoreUseCase
	log  *zap.Logger
}

func NewServer(core *usecase.CoreUseCase, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{core: core, log: log}
}

// App 建立 fiber app 並註冊所有路由
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Mini ATM System",
		DisableStartupMessage: true,
		// 冪等快取與稽核日誌會保留 key 與帳號，不能使用 fasthttp 的暫存 buffer
		Immutable:             true,
		ErrorHandler:          s.errorHandler,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})
	app.Use(s.accessLog)

	app.Get("/healthz", s.health)

	accounts := app.Group("/accounts/:account_number")
	accounts.Get("/balance", s.getBalance)
	accounts.Post("/deposit", s.deposit)
	accounts.Post("/withdraw", s.withdraw)
	accounts.Get("/transactions", s.listTransactions)

	return app
}

// accessLog 每個請求一筆紀錄
func (s *Server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		// 交給 ErrorHandler 產生回應，這裡才拿得到最終的 status
		if handlerErr := s.errorHandler(c, err); handlerErr != nil {
			return handlerErr
		}
	}

	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(start)),
	}
	if account := c.Params("account_number"); account != "" {
		fields = append(fields, zap.String("account", account))
	}
	if key := c.Get(IdempotencyKeyHeader); key != "" {
		fields = append(fields, zap.String("idempotency_key", key))
	}
	if replayed := c.GetRespHeader(ReplayedHeader); replayed == "true" {
		fields = append(fields, zap.Bool("replayed", true))
	}
	s.log.Info("http request", fields...)
	return nil
}
