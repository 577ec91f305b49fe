package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Quote is the latest price of one currency pair as reported by the provider.
type Quote struct {
	Code   string          `json:"code"`   // Base currency, e.g. "USD"
	CodeIn string          `json:"codein"` // Counter currency, e.g. "BRL"
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
}

// QuoteSet maps the provider pair specifier (e.g. "USDBRL") to its quote.
type QuoteSet map[string]Quote

// Ordered returns quotes following the requested pair order.
// Quotes the provider returned under unexpected keys are appended sorted by key.
func (qs QuoteSet) Ordered(pairs []CurrencyPair) []Quote {
	out := make([]Quote, 0, len(qs))
	used := make(map[string]struct{}, len(qs))
	for _, p := range pairs {
		k := p.QuoteKey()
		if q, ok := qs[k]; ok {
			if _, dup := used[k]; !dup {
				out = append(out, q)
				used[k] = struct{}{}
			}
		}
	}

	rest := make([]string, 0, len(qs)-len(used))
	for k := range qs {
		if _, ok := used[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, qs[k])
	}
	return out
}

// PairSetKey builds the cache key for a pair list.
// Request order is preserved, so the same pairs in a different order yield a different key.
func PairSetKey(pairs []CurrencyPair) string {
	symbols := make([]string, 0, len(pairs))
	for _, p := range pairs {
		symbols = append(symbols, strings.ToUpper(p.Symbol()))
	}
	return strings.Join(symbols, ",")
}
