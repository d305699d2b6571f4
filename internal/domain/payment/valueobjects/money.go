package valueobjects

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
)

// tokenCurrencies are settlement units outside ISO 4217 that providers report,
// mapped to the number of fractional digits their minor unit carries.
// Telegram Stars (XTR) are indivisible.
var tokenCurrencies = map[string]int{"USDT": 2, "USDC": 2, "XTR": 0}

const defaultScale = 2

// Money is an amount in minor units (kopecks, cents, stars) with an ISO 4217
// currency or a token unit. The number of fractional digits depends on the currency.
type Money struct {
	amountMinor int64
	currency    string
}

func NewMoney(amountMinor int64, currency string) Money {
	return Money{
		amountMinor: amountMinor,
		currency:    strings.ToUpper(strings.TrimSpace(currency)),
	}
}

// CurrencyScale is the number of fractional digits of the currency's minor
// unit: 2 for RUB and USD, 0 for JPY and XTR. Unknown codes use 2.
func CurrencyScale(code string) int {
	code = strings.ToUpper(strings.TrimSpace(code))
	if scale, ok := tokenCurrencies[code]; ok {
		return scale
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return defaultScale
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// ParseMoney parses a decimal string such as "299.00" or "299" with at most as
// many fractional digits as the currency allows, the format gateways use on the wire.
func ParseMoney(value, currency string) (Money, error) {
	scale := CurrencyScale(currency)
	value = strings.TrimSpace(value)
	whole, frac, hasFrac := strings.Cut(value, ".")
	if whole == "" || len(frac) > scale || (hasFrac && frac == "") {
		return Money{}, fmt.Errorf("invalid amount %q", value)
	}
	for len(frac) < scale {
		frac += "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return Money{}, fmt.Errorf("invalid amount %q", value)
	}
	minor := units * pow10(scale)
	if frac != "" {
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return Money{}, fmt.Errorf("invalid amount %q", value)
		}
		minor += f
	}
	return NewMoney(minor, currency), nil
}

func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

func (m Money) AmountMinor() int64 {
	return m.amountMinor
}

func (m Money) Currency() string {
	return m.currency
}

// Scale is the number of fractional digits in the currency's minor unit.
func (m Money) Scale() int {
	return CurrencyScale(m.currency)
}

// Decimal renders the amount as "299.00", or "50" for currencies without fractions.
func (m Money) Decimal() string {
	scale := m.Scale()
	if scale == 0 {
		return strconv.FormatInt(m.amountMinor, 10)
	}
	unit := pow10(scale)
	return fmt.Sprintf("%d.%0*d", m.amountMinor/unit, scale, m.amountMinor%unit)
}

func (m Money) Equals(other Money) bool {
	return m.amountMinor == other.amountMinor && m.currency == other.currency
}

func (m Money) IsPositive() bool {
	return m.amountMinor > 0
}

func (m Money) String() string {
	return m.Decimal() + " " + m.currency
}

// IsSupportedCurrency reports whether code is an ISO 4217 currency or a known token unit.
func IsSupportedCurrency(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if _, ok := tokenCurrencies[code]; ok {
		return true
	}
	_, err := currency.ParseISO(code)
	return err == nil
}
