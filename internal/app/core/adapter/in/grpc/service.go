package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	ServiceName = "atm.v1.LedgerService"

	MethodGetBalance       = "/" + ServiceName + "/GetBalance"
	MethodDeposit          = "/" + ServiceName + "/Deposit"
	MethodWithdraw         = "/" + ServiceName + "/Withdraw"
	MethodListTransactions = "/" + ServiceName + "/ListTransactions"

	// metadata keys
	IdempotencyKeyHeader = "idempotency-key"
	ReplayedHeader       = "idempotent-replayed"
)

type GetBalanceRequest struct {
	AccountNumber string `json:"account_number"`
}

// MoneyChangeRequest 存款 / 提款，Amount 為十進位字串
type MoneyChangeRequest struct {
	AccountNumber string `json:"account_number"`
	Amount        string `json:"amount"`
}

type BalanceResponse struct {
	AccountNumber string `json:"account_number"`
	Balance       string `json:"balance"`
}

type ListTransactionsRequest struct {
	AccountNumber string `json:"account_number"`
}

type TransactionMessage struct {
	ID      string `json:"id"`
	TS      string `json:"ts"`
	Type    string `json:"type"`
	Amount  string `json:"amount"`
	Balance string `json:"balance"`
}

type TransactionsResponse struct {
	AccountNumber string               `json:"account_number"`
	Transactions  []TransactionMessage `json:"transactions"`
}

// LedgerServiceServer 帳務服務介面
type LedgerServiceServer interface {
	GetBalance(context.Context, *GetBalanceRequest) (*BalanceResponse, error)
	Deposit(context.Context, *MoneyChangeRequest) (*BalanceResponse, error)
	Withdraw(context.Context, *MoneyChangeRequest) (*BalanceResponse, error)
	ListTransactions(context.Context, *ListTransactionsRequest) (*TransactionsResponse, error)
}

// RegisterLedgerServiceServer 註冊服務
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&ledgerServiceDesc, srv)
}

// unaryHandler 產生 MethodDesc handler
func unaryHandler[Req any, Resp any](fullMethod string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ledgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetBalance",
			Handler:    unaryHandler(MethodGetBalance, LedgerServiceServer.GetBalance),
		},
		{
			MethodName: "Deposit",
			Handler:    unaryHandler(MethodDeposit, LedgerServiceServer.Deposit),
		},
		{
			MethodName: "Withdraw",
			Handler:    unaryHandler(MethodWithdraw, LedgerServiceServer.Withdraw),
		},
		{
			MethodName: "ListTransactions",
			Handler:    unaryHandler(MethodListTransactions, LedgerServiceServer.ListTransactions),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "atm/v1/ledger",
}

// LedgerClient 帳務服務的 client，固定使用 json codec
type LedgerClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerClient(cc grpc.ClientConnInterface) *LedgerClient {
	return &LedgerClient{cc: cc}
}

func (c *LedgerClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *LedgerClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	out := new(BalanceResponse)
	if err := c.invoke(ctx, MethodGetBalance, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Deposit(ctx context.Context, in *MoneyChangeRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	out := new(BalanceResponse)
	if err := c.invoke(ctx, MethodDeposit, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Withdraw(ctx context.Context, in *MoneyChangeRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	out := new(BalanceResponse)
	if err := c.invoke(ctx, MethodWithdraw, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) ListTransactions(ctx context.Context, in *ListTransactionsRequest, opts ...grpc.CallOption) (*TransactionsResponse, error) {
	out := new(TransactionsResponse)
	if err := c.invoke(ctx, MethodListTransactions, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
