package engine

import (
	"errors"
	"fmt"
	"strings"

	"quote_notifier/internal/domain"
)

const (
	// MsgNoData is sent when the provider has nothing for the requested pairs.
	MsgNoData = "Não foi possível obter as cotações."
	// MsgFetchError is sent when quotes could not be fetched.
	MsgFetchError = "Erro ao buscar as cotações."
)

// FormatQuotes renders one line per quote in requested pair order, or a
// fixed failure string when quotes are unavailable.
func FormatQuotes(quotes domain.QuoteSet, err error, pairs []domain.CurrencyPair) string {
	if err != nil {
		if errors.Is(err, domain.ErrNoData) {
			return MsgNoData
		}
		return MsgFetchError
	}
	if len(quotes) == 0 {
		return MsgNoData
	}

	lines := make([]string, 0, len(quotes))
	for _, q := range quotes.Ordered(pairs) {
		lines = append(lines, fmt.Sprintf("💱 %s → %s %s", q.Code, q.CodeIn, q.Ask.String()))
	}
	return strings.Join(lines, "\n")
}
