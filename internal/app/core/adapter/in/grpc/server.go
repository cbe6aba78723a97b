package grpc

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-mem-atm/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-atm/internal/app/core/usecase"
)

// ErrorDomain errdetails.ErrorInfo 的 Domain
const ErrorDomain = "atm.ledger"

type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *GetBalanceRequest) (*BalanceResponse, error) {
	balance, err := s.core.GetAccountBalance(ctx, req.AccountNumber)
	if err != nil {
		return nil, toStatus(err)
	}
	return &BalanceResponse{
		AccountNumber: req.AccountNumber,
		Balance:       balance.String(),
	}, nil
}

func (s *GrpcServer) Deposit(ctx context.Context, req *MoneyChangeRequest) (*BalanceResponse, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	snap, replayed, err := s.core.Deposit(ctx, idempotencyKey(ctx), req.AccountNumber, amount)
	return s.mutationResponse(ctx, snap, replayed, err)
}

func (s *GrpcServer) Withdraw(ctx context.Context, req *MoneyChangeRequest) (*BalanceResponse, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	snap, replayed, err := s.core.Withdraw(ctx, idempotencyKey(ctx), req.AccountNumber, amount)
	return s.mutationResponse(ctx, snap, replayed, err)
}

func (s *GrpcServer) ListTransactions(ctx context.Context, req *ListTransactionsRequest) (*TransactionsResponse, error) {
	txs, err := s.core.ListTransactions(ctx, req.AccountNumber)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &TransactionsResponse{
		AccountNumber: req.AccountNumber,
		Transactions:  make([]TransactionMessage, 0, len(txs)),
	}
	for _, tx := range txs {
		out.Transactions = append(out.Transactions, TransactionMessage{
			ID:      tx.ID.String(),
			TS:      tx.CreatedAt.UTC().Format(time.RFC3339Nano),
			Type:    tx.Type.String(),
			Amount:  tx.Amount.String(),
			Balance: tx.Balance.String(),
		})
	}
	return out, nil
}

func (s *GrpcServer) mutationResponse(ctx context.Context, snap domain.BalanceSnapshot, replayed bool, err error) (*BalanceResponse, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	// Best Effort，header 設定失敗不影響結果
	_ = grpc.SetHeader(ctx, metadata.Pairs(ReplayedHeader, strconv.FormatBool(replayed)))
	return &BalanceResponse{
		AccountNumber: snap.AccountID,
		Balance:       snap.Balance.String(),
	}, nil
}

// parseAmount 解析金額字串，格式錯誤回傳 InvalidArgument
func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, toStatus(domain.ErrInvalidAmount)
	}
	return amount, nil
}

// idempotencyKey 從 metadata 取出冪等 key，沒有時回傳空字串
func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(IdempotencyKeyHeader); len(values) > 0 {
		return values[0]
	}
	return ""
}

// toStatus 將 domain error 轉成 gRPC status，並附上 ErrorInfo
func toStatus(err error) error {
	var code codes.Code
	var reason string
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		code, reason = codes.NotFound, "ACCOUNT_NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidAmount):
		code, reason = codes.InvalidArgument, "INVALID_AMOUNT"
	case errors.Is(err, domain.ErrInsufficientFunds):
		code, reason = codes.FailedPrecondition, "INSUFFICIENT_FUNDS"
	default:
		return status.Error(codes.Internal, err.Error())
	}

	st := status.New(code, err.Error())
	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: reason,
		Domain: ErrorDomain,
	})
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ErrorReason 取出 status 中 ErrorInfo 的 Reason，給 client 判斷錯誤種類
func ErrorReason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}

var _ LedgerServiceServer = (*GrpcServer)(nil)
