package domain

import (
	"math"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// 金額精度：小數點後 2 位
const (
	CurrencyPlaces = 2
	CurrencyScale  = 100
)

// maxCentsDigits int64 最多 19 位數
const maxCentsDigits = 19

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// Money 以「分」為單位的定點金額，只在邊界才轉成十進位字串
type Money int64

// Normalize 將金額四捨五入到小數點後 2 位 (round half up，遠離零)
//
// 參數:
//
//	amount: 任意精度的十進位金額
//
// 回傳:
//
//	decimal.Decimal: 正規化後的金額
func Normalize(amount decimal.Decimal) decimal.Decimal {
	// Round 會把係數 rescale 到目標精度，指數極大或極小時成本與指數成正比，先依量級處理
	if amount.Exponent() >= -CurrencyPlaces {
		return amount
	}
	if magnitude(amount) < -CurrencyPlaces {
		// |amount| < 0.001
		return decimal.New(0, -CurrencyPlaces)
	}
	return amount.Round(CurrencyPlaces)
}

// magnitude 整數部分的位數上限：|d| < 10^magnitude(d)
func magnitude(d decimal.Decimal) int64 {
	return int64(d.NumDigits()) + int64(d.Exponent())
}

// MoneyFromDecimal 正規化後轉成 Money，超出 int64 範圍回傳 ErrInvalidAmount
func MoneyFromDecimal(amount decimal.Decimal) (Money, error) {
	if amount.IsZero() {
		return 0, nil
	}
	cents := Normalize(amount).Shift(CurrencyPlaces)
	if cents.IsZero() {
		return 0, nil
	}
	// 比較前先擋掉位數過多的值，避免 Cmp 時 rescale 巨大指數
	if magnitude(cents) > maxCentsDigits || cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, errors.Wrap(ErrInvalidAmount, "amount out of range")
	}
	return Money(cents.IntPart()), nil
}

// NewAmount 建立交易金額，正規化後必須大於 0
func NewAmount(amount decimal.Decimal) (Money, error) {
	m, err := MoneyFromDecimal(amount)
	if err != nil {
		return 0, err
	}
	if m <= 0 {
		return 0, ErrInvalidAmount
	}
	return m, nil
}

// ParseAmount 解析字串金額 (e.g. "50.00")
func ParseAmount(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return NewAmount(d)
}

// Decimal 轉回十進位表示
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -CurrencyPlaces)
}

// String 固定兩位小數，例如 550.00
func (m Money) String() string {
	return m.Decimal().StringFixed(CurrencyPlaces)
}
