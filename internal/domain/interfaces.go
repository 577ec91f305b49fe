package domain

import (
	"context"
	"time"
)

// SubscriberStore is the persistence boundary for subscriber records.
// Writes for the same ChatID must not interleave.
type SubscriberStore interface {
	GetByID(ctx context.Context, chatID int64) (*Subscriber, error)
	ListAll(ctx context.Context) ([]Subscriber, error)
	GetOrCreate(ctx context.Context, chatID int64, username string) (*Subscriber, error)
	Upsert(ctx context.Context, sub *Subscriber) error

	// Mutate reads the current record (creating it if absent), applies fn and
	// persists it once if fn reports a change. The whole sequence holds the
	// per-identity lock.
	Mutate(ctx context.Context, chatID int64, username string, fn func(sub *Subscriber) bool) (*Subscriber, error)
}

// QuoteProvider fetches the latest quotes for a pair list from upstream.
type QuoteProvider interface {
	FetchQuotes(ctx context.Context, pairs []CurrencyPair) (QuoteSet, error)
}

// QuoteSource is what the scheduler asks for quotes (cache + retry applied).
type QuoteSource interface {
	Quotes(ctx context.Context, pairs []CurrencyPair) (QuoteSet, error)
}

// OutboundMessage is one message to a chat.
type OutboundMessage struct {
	ChatID   int64
	Text     string
	WithMenu bool // Attach the main menu keyboard
}

// Messenger delivers messages through the chat channel.
type Messenger interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time
