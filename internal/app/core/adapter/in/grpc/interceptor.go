package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor 每個 unary 呼叫記錄一筆 access log
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(start)),
		}
		switch r := req.(type) {
		case *MoneyChangeRequest:
			fields = append(fields,
				zap.String("account", r.AccountNumber),
				zap.String("amount", r.Amount),
			)
			if key := idempotencyKey(ctx); key != "" {
				fields = append(fields, zap.String("idempotency_key", key))
			}
		case *GetBalanceRequest:
			fields = append(fields, zap.String("account", r.AccountNumber))
		case *ListTransactionsRequest:
			fields = append(fields, zap.String("account", r.AccountNumber))
		}

		if err != nil {
			log.Info("grpc call failed", append(fields, zap.Error(err))...)
		} else {
			log.Info("grpc call", fields...)
		}
		return resp, err
	}
}
