package domain

import (
	"strings"
	"time"
)

// BotState is the conversation state of a subscriber.
type BotState int

const (
	StateNormal BotState = iota
	StateAwaitingInterval
	StateAwaitingPairs
)

func (s BotState) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateAwaitingInterval:
		return "AWAITING_INTERVAL"
	case StateAwaitingPairs:
		return "AWAITING_PAIRS"
	default:
		return "UNKNOWN"
	}
}

const (
	// MinIntervalMinutes and MaxIntervalMinutes bound a configured interval (inclusive).
	MinIntervalMinutes = 1
	MaxIntervalMinutes = 1440
)

// Subscriber is the persisted configuration and state for one chat.
// ChatID is the identity and never changes after creation.
type Subscriber struct {
	ChatID          int64          `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	Username        string         `json:"username"`
	State           BotState       `json:"state"`
	MinutesInterval int            `json:"minutes_interval"`
	LastNotify      time.Time      `json:"last_notify"`
	IsActive        bool           `gorm:"index" json:"is_active"`
	Pairs           []CurrencyPair `gorm:"foreignKey:ChatID;references:ChatID;constraint:OnDelete:CASCADE" json:"pairs"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewSubscriber returns a subscriber with first-contact defaults.
func NewSubscriber(chatID int64, username string) *Subscriber {
	return &Subscriber{
		ChatID:   chatID,
		Username: username,
		State:    StateNormal,
		IsActive: true,
	}
}

// NextNotify returns the earliest time the subscriber is due again.
func (s *Subscriber) NextNotify() time.Time {
	return s.LastNotify.Add(time.Duration(s.MinutesInterval) * time.Minute)
}

// IsDue reports whether a notification should be sent at now.
// Inactive subscribers, a zero interval and an empty pair list are never due.
func (s *Subscriber) IsDue(now time.Time) bool {
	if !s.IsActive || s.MinutesInterval <= 0 || len(s.Pairs) == 0 {
		return false
	}
	return !now.Before(s.NextNotify())
}

// SetPairs replaces the pair list, normalizing codes and dropping duplicates.
func (s *Subscriber) SetPairs(pairs []CurrencyPair) {
	out := make([]CurrencyPair, 0, len(pairs))
	for _, p := range pairs {
		p = NewCurrencyPair(p.From, p.To)
		if p.From == "" || p.To == "" || containsPair(out, p) {
			continue
		}
		p.ChatID = s.ChatID
		p.Position = len(out)
		out = append(out, p)
	}
	s.Pairs = out
}

// Clone returns a deep copy so callers can mutate without aliasing the pair slice.
func (s *Subscriber) Clone() *Subscriber {
	c := *s
	c.Pairs = append([]CurrencyPair(nil), s.Pairs...)
	return &c
}

// CurrencyPair is a (from, to) currency code tuple. Equality ignores case.
type CurrencyPair struct {
	ID       uint   `gorm:"primaryKey" json:"-"`
	ChatID   int64  `gorm:"index" json:"-"`
	From     string `json:"from"`
	To       string `json:"to"`
	Position int    `json:"-"`
}

// NewCurrencyPair builds a pair with trimmed, upper-cased codes.
func NewCurrencyPair(from, to string) CurrencyPair {
	return CurrencyPair{
		From: strings.ToUpper(strings.TrimSpace(from)),
		To:   strings.ToUpper(strings.TrimSpace(to)),
	}
}

// Symbol renders the provider request specifier, e.g. "USD-BRL".
func (p CurrencyPair) Symbol() string {
	return p.From + "-" + p.To
}

// QuoteKey is the key the provider uses for this pair in its response, e.g. "USDBRL".
func (p CurrencyPair) QuoteKey() string {
	return p.From + p.To
}

// Equal compares two pairs ignoring case.
func (p CurrencyPair) Equal(o CurrencyPair) bool {
	return strings.EqualFold(p.From, o.From) && strings.EqualFold(p.To, o.To)
}

func containsPair(pairs []CurrencyPair, p CurrencyPair) bool {
	for _, q := range pairs {
		if q.Equal(p) {
			return true
		}
	}
	return false
}

// TableName keeps the pair table name explicit for migrations.
func (CurrencyPair) TableName() string { return "subscriber_pairs" }
