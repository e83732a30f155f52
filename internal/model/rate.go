package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceDirect marks synthetic identity rates that never touch a provider.
const SourceDirect = "Direct"

// Rate is a single observed exchange rate. Immutable once constructed.
type Rate struct {
	From       Code            `json:"from"`
	To         Code            `json:"to"`
	Value      decimal.Decimal `json:"value"`
	ObservedAt time.Time       `json:"observedAt"`
	Source     string          `json:"source"`
}

// IdentityRate returns the synthetic 1:1 rate for a currency against itself.
func IdentityRate(c Code) Rate {
	return Rate{
		From:       c,
		To:         c,
		Value:      decimal.NewFromInt(1),
		ObservedAt: time.Now().UTC(),
		Source:     SourceDirect,
	}
}

// RateTable maps target currency to rate, always quoted from one base currency.
type RateTable map[Code]Rate

// Filter returns a copy of the table restricted to the given symbols.
// A nil or empty symbol list returns the table unchanged.
func (t RateTable) Filter(symbols []Code) RateTable {
	if len(symbols) == 0 {
		return t
	}
	out := make(RateTable, len(symbols))
	for _, s := range symbols {
		if r, ok := t[s]; ok {
			out[s] = r
		}
	}
	return out
}

// ConversionResult is the outcome of a currency conversion.
type ConversionResult struct {
	Amount          decimal.Decimal `json:"amount"`
	From            Code            `json:"from"`
	To              Code            `json:"to"`
	ConvertedAmount decimal.Decimal `json:"convertedAmount"`
	Rate            decimal.Decimal `json:"rate"`
	RateTimestamp   time.Time       `json:"rateTimestamp"`
	RateSource      string          `json:"rateSource"`
}
