package token

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	maxSymbolCodeLen = 7
	maxPrecision     = 18
	maxTextLen       = 256

	// MaxAmount is the largest supply or quantity the ledger accepts (2^62 - 1).
	MaxAmount = int64(1)<<62 - 1
)

// Symbol identifies a currency by its upper-case code and fixed precision.
type Symbol struct {
	Code      string `json:"code"`
	Precision uint8  `json:"precision"`
}

// Valid reports whether the code is 1-7 upper-case letters and the precision is supported.
func (s Symbol) Valid() bool {
	if len(s.Code) == 0 || len(s.Code) > maxSymbolCodeLen {
		return false
	}
	for _, r := range s.Code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return s.Precision <= maxPrecision
}

func (s Symbol) String() string {
	return fmt.Sprintf("%d,%s", s.Precision, s.Code)
}

// Asset is an amount of a currency expressed in its smallest unit.
type Asset struct {
	Amount int64  `json:"amount"`
	Symbol Symbol `json:"symbol"`
}

// NewAsset builds an asset from a raw amount and symbol.
func NewAsset(amount int64, code string, precision uint8) Asset {
	return Asset{Amount: amount, Symbol: Symbol{Code: code, Precision: precision}}
}

// String renders the asset as "12.3400 CODE".
func (a Asset) String() string {
	amount := a.Amount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	p := int(a.Symbol.Precision)
	if p == 0 {
		return sign + digits + " " + a.Symbol.Code
	}
	if len(digits) <= p {
		digits = strings.Repeat("0", p-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-p], digits[len(digits)-p:]
	return sign + whole + "." + frac + " " + a.Symbol.Code
}

// ParseAsset parses the "12.3400 CODE" form. The number of fractional digits
// fixes the precision.
func ParseAsset(s string) (Asset, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Asset{}, fmt.Errorf("asset %q: expected \"<amount> <code>\"", s)
	}
	number, code := fields[0], fields[1]

	negative := strings.HasPrefix(number, "-")
	number = strings.TrimPrefix(number, "-")

	whole, frac, hasDot := strings.Cut(number, ".")
	if !digits(whole) || (hasDot && !digits(frac)) {
		return Asset{}, fmt.Errorf("asset %q: malformed amount", s)
	}
	if len(frac) > maxPrecision {
		return Asset{}, fmt.Errorf("asset %q: precision above %d", s, maxPrecision)
	}
	amount, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return Asset{}, fmt.Errorf("asset %q: %w", s, err)
	}
	if negative {
		amount = -amount
	}

	a := Asset{Amount: amount, Symbol: Symbol{Code: code, Precision: uint8(len(frac))}}
	if !a.Symbol.Valid() {
		return Asset{}, fmt.Errorf("asset %q: invalid symbol code", s)
	}
	return a, nil
}

// digits reports whether s is a non-empty run of ASCII digits.
func digits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseSymbol parses the "4,CODE" form produced by Symbol.String.
func ParseSymbol(s string) (Symbol, error) {
	p, code, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return Symbol{}, fmt.Errorf("symbol %q: expected \"<precision>,<code>\"", s)
	}
	precision, err := strconv.ParseUint(p, 10, 8)
	if err != nil {
		return Symbol{}, fmt.Errorf("symbol %q: %w", s, err)
	}
	sym := Symbol{Code: code, Precision: uint8(precision)}
	if !sym.Valid() {
		return Symbol{}, fmt.Errorf("symbol %q: invalid", s)
	}
	return sym, nil
}
