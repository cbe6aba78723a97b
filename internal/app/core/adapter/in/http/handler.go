package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-atm/internal/app/core/domain"
)

// moneyChange 存提款的 request body，amount 可以是字串或數字
type moneyChange struct {
	Amount decimal.NullDecimal `json:"amount"`
}

type balanceResponse struct {
	AccountNumber string `json:"account_number"`
	Balance       string `json:"balance"`
}

type transactionResponse struct {
	TS      string `json:"ts"`
	Type    string `json:"type"`
	Amount  string `json:"amount"`
	Balance string `json:"balance"`
}

type transactionsResponse struct {
	AccountNumber string                `json:"account_number"`
	Transactions  []transactionResponse `json:"transactions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// validationError 對應 422
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": Version})
}

func (s *Server) getBalance(c *fiber.Ctx) error {
	accountNumber := c.Params("account_number")
	balance, err := s.core.GetAccountBalance(c.UserContext(), accountNumber)
	if err != nil {
		return err
	}
	return c.JSON(balanceResponse{AccountNumber: accountNumber, Balance: balance.String()})
}

func (s *Server) deposit(c *fiber.Ctx) error {
	amount, err := parseMoneyChange(c)
	if err != nil {
		return err
	}
	snap, replayed, err := s.core.Deposit(c.UserContext(), c.Get(IdempotencyKeyHeader), c.Params("account_number"), amount)
	return s.writeMutation(c, snap, replayed, err)
}

func (s *Server) withdraw(c *fiber.Ctx) error {
	amount, err := parseMoneyChange(c)
	if err != nil {
		return err
	}
	snap, replayed, err := s.core.Withdraw(c.UserContext(), c.Get(IdempotencyKeyHeader), c.Params("account_number"), amount)
	return s.writeMutation(c, snap, replayed, err)
}

func (s *Server) listTransactions(c *fiber.Ctx) error {
	accountNumber := c.Params("account_number")
	txs, err := s.core.ListTransactions(c.UserContext(), accountNumber)
	if err != nil {
		return err
	}
	out := transactionsResponse{
		AccountNumber: accountNumber,
		Transactions:  make([]transactionResponse, 0, len(txs)),
	}
	for _, tx := range txs {
		out.Transactions = append(out.Transactions, transactionResponse{
			TS:      tx.CreatedAt.UTC().Format(time.RFC3339Nano),
			Type:    tx.Type.String(),
			Amount:  tx.Amount.String(),
			Balance: tx.Balance.String(),
		})
	}
	return c.JSON(out)
}

func (s *Server) writeMutation(c *fiber.Ctx, snap domain.BalanceSnapshot, replayed bool, err error) error {
	if err != nil {
		return err
	}
	c.Set(ReplayedHeader, strconv.FormatBool(replayed))
	return c.JSON(balanceResponse{AccountNumber: snap.AccountID, Balance: snap.Balance.String()})
}

// parseMoneyChange 驗證 request body，amount 必須存在且 > 0
func parseMoneyChange(c *fiber.Ctx) (decimal.Decimal, error) {
	var body moneyChange
	if err := c.BodyParser(&body); err != nil {
		return decimal.Decimal{}, &validationError{msg: "invalid request body"}
	}
	if !body.Amount.Valid {
		return decimal.Decimal{}, &validationError{msg: "field required: amount"}
	}
	if !body.Amount.Decimal.IsPositive() {
		return decimal.Decimal{}, &validationError{msg: "amount must be > 0"}
	}
	return body.Amount.Decimal, nil
}

// errorHandler 將錯誤轉成 {"error": "..."}
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"

	var vErr *validationError
	var fErr *fiber.Error
	switch {
	case errors.As(err, &vErr):
		code, msg = fiber.StatusUnprocessableEntity, vErr.msg
	case errors.Is(err, domain.ErrAccountNotFound):
		code, msg = fiber.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInsufficientFunds):
		code, msg = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInvalidAmount):
		code, msg = fiber.StatusUnprocessableEntity, err.Error()
	case errors.As(err, &fErr):
		code, msg = fErr.Code, fErr.Message
	default:
		s.log.Error("unhandled error", zap.Error(err))
	}
	return c.Status(code).JSON(errorResponse{Error: msg})
}
