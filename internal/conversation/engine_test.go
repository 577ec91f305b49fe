package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"quote_notifier/internal/domain"
	"quote_notifier/internal/event"
	"quote_notifier/internal/infra"

	"github.com/stretchr/testify/require"
)

// memStore is an in-memory SubscriberStore that counts writes.
type memStore struct {
	mu     sync.Mutex
	subs   map[int64]*domain.Subscriber
	writes int
	err    error
}

func newMemStore() *memStore {
	return &memStore{subs: make(map[int64]*domain.Subscriber)}
}

func (s *memStore) GetByID(_ context.Context, chatID int64) (*domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[chatID]; ok {
		return sub.Clone(), nil
	}
	return nil, nil
}

func (s *memStore) ListAll(_ context.Context) ([]domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, *sub.Clone())
	}
	return out, nil
}

func (s *memStore) GetOrCreate(_ context.Context, chatID int64, username string) (*domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(chatID, username).Clone(), nil
}

func (s *memStore) getOrCreate(chatID int64, username string) *domain.Subscriber {
	sub, ok := s.subs[chatID]
	if !ok {
		sub = domain.NewSubscriber(chatID, username)
		s.subs[chatID] = sub
	}
	return sub
}

func (s *memStore) Upsert(_ context.Context, sub *domain.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.subs[sub.ChatID] = sub.Clone()
	return nil
}

func (s *memStore) Mutate(_ context.Context, chatID int64, username string, fn func(sub *domain.Subscriber) bool) (*domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.getOrCreate(chatID, username).Clone()
	if !fn(current) {
		return s.subs[chatID].Clone(), nil
	}
	if s.err != nil {
		return s.subs[chatID].Clone(), s.err
	}
	s.writes++
	s.subs[chatID] = current.Clone()
	return current, nil
}

type recordingMessenger struct {
	mu   sync.Mutex
	sent []domain.OutboundMessage
}

func (m *recordingMessenger) Send(_ context.Context, msg domain.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.Text)
	}
	return out
}

func (m *recordingMessenger) reset() {
	m.mu.Lock()
	m.sent = nil
	m.mu.Unlock()
}

const chatID = int64(42)

func setup(t *testing.T) (*Engine, *memStore, *recordingMessenger) {
	t.Helper()
	store := newMemStore()
	msgr := &recordingMessenger{}
	return NewEngine(store, msgr, &infra.Metrics{}), store, msgr
}

func text(s string) *event.TextEvent {
	return &event.TextEvent{ChatID: chatID, Text: s, SenderName: "alice"}
}

func press(token string) *event.CallbackEvent {
	return &event.CallbackEvent{ChatID: chatID, Token: token, CallbackID: "cb-1", SenderName: "alice"}
}

func stored(t *testing.T, store *memStore) *domain.Subscriber {
	t.Helper()
	sub, err := store.GetByID(context.Background(), chatID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	return sub
}

func TestStart_SendsWelcomeWithMenu(t *testing.T) {
	e, store, msgr := setup(t)

	require.NoError(t, e.HandleText(context.Background(), text("  /START ")))

	require.Len(t, msgr.sent, 3)
	require.Equal(t, msgWelcome, msgr.sent[0].Text)
	require.False(t, msgr.sent[0].WithMenu)
	require.True(t, msgr.sent[2].WithMenu)

	sub := stored(t, store)
	require.Equal(t, domain.StateNormal, sub.State)
	require.Equal(t, "alice", sub.Username)
	require.Zero(t, store.writes)
}

func TestStart_DoesNotCountAsBadInterval(t *testing.T) {
	e, store, msgr := setup(t)
	ctx := context.Background()

	require.NoError(t, e.HandleCallback(ctx, press(TokenSetInterval)))
	msgr.reset()

	require.NoError(t, e.HandleText(ctx, text("/start")))
	require.NotContains(t, msgr.texts(), msgInvalidInterval)
	require.Equal(t, domain.StateAwaitingInterval, stored(t, store).State)
}

func TestIntervalFlow(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantState domain.BotState
		wantMins  int
		wantReply string
	}{
		{"valid", "61", domain.StateNormal, 61, "Intervalo configurado para 61 minutos."},
		{"singular", "1", domain.StateNormal, 1, "Intervalo configurado para 1 minuto."},
		{"upper bound", "1440", domain.StateNormal, 1440, "Intervalo configurado para 1440 minutos."},
		{"too large", "99999", domain.StateAwaitingInterval, 0, msgInvalidInterval},
		{"zero", "0", domain.StateAwaitingInterval, 0, msgInvalidInterval},
		{"negative", "-5", domain.StateAwaitingInterval, 0, msgInvalidInterval},
		{"not a number", "ten", domain.StateAwaitingInterval, 0, msgInvalidInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, store, msgr := setup(t)
			ctx := context.Background()

			require.NoError(t, e.HandleCallback(ctx, press(TokenSetInterval)))
			require.Equal(t, []string{msgAskInterval}, msgr.texts())
			writesBefore := store.writes
			msgr.reset()

			require.NoError(t, e.HandleText(ctx, text(tt.input)))

			sub := stored(t, store)
			require.Equal(t, tt.wantState, sub.State)
			require.Equal(t, tt.wantMins, sub.MinutesInterval)
			require.Equal(t, []string{tt.wantReply}, msgr.texts())

			if tt.wantState == domain.StateNormal {
				require.Equal(t, writesBefore+1, store.writes)
			} else {
				require.Equal(t, writesBefore, store.writes, "invalid input must not write")
			}
		})
	}
}

func TestPairsFlow(t *testing.T) {
	e, store, msgr := setup(t)
	ctx := context.Background()

	require.NoError(t, e.HandleCallback(ctx, press(TokenSetPairs)))
	require.Equal(t, domain.StateAwaitingPairs, stored(t, store).State)

	for _, bad := range []string{"", "garbage", "USD", "-BRL, EUR-"} {
		msgr.reset()
		require.NoError(t, e.HandleText(ctx, text(bad)))
		require.Equal(t, domain.StateAwaitingPairs, stored(t, store).State, "input %q", bad)
		require.Equal(t, []string{msgInvalidPairs}, msgr.texts())
	}

	msgr.reset()
	require.NoError(t, e.HandleText(ctx, text("eur-brl, USD-EUR")))

	sub := stored(t, store)
	require.Equal(t, domain.StateNormal, sub.State)
	require.Len(t, sub.Pairs, 2)
	require.Equal(t, "EUR-BRL", sub.Pairs[0].Symbol())
	require.Equal(t, "USD-EUR", sub.Pairs[1].Symbol())
	require.Equal(t, []string{"Moedas configuradas:\nEUR → BRL\nUSD → EUR"}, msgr.texts())
}

func TestToggleActive(t *testing.T) {
	e, store, msgr := setup(t)
	ctx := context.Background()

	require.NoError(t, e.HandleCallback(ctx, press(TokenToggleActive)))
	require.False(t, stored(t, store).IsActive)
	require.NoError(t, e.HandleText(ctx, text("/ativar")))
	require.True(t, stored(t, store).IsActive)

	require.Equal(t, []string{"Notificações desativadas!", "Notificações ativadas!"}, msgr.texts())
	require.Equal(t, 2, store.writes)
	require.Equal(t, domain.StateNormal, stored(t, store).State)
}

func TestShowStatus_KeepsState(t *testing.T) {
	e, store, msgr := setup(t)
	ctx := context.Background()

	require.NoError(t, e.HandleCallback(ctx, press(TokenSetPairs)))
	require.NoError(t, e.HandleText(ctx, text("USD-BRL")))
	require.NoError(t, e.HandleCallback(ctx, press(TokenSetInterval)))
	writes := store.writes
	msgr.reset()

	require.NoError(t, e.HandleCallback(ctx, press(TokenShowStatus)))

	require.Equal(t, domain.StateAwaitingInterval, stored(t, store).State)
	require.Equal(t, writes, store.writes)
	require.Equal(t, []string{"🗣 Notificações: ✅\n⏱ Intervalo: 0 min\n💱 Moedas:\n    USD→BRL"}, msgr.texts())
}

func TestNormalFreeText_Hints(t *testing.T) {
	e, _, msgr := setup(t)

	require.NoError(t, e.HandleText(context.Background(), text("hello")))
	require.Equal(t, []string{msgHint}, msgr.texts())
}

func TestUnknownCallback_Ignored(t *testing.T) {
	e, store, msgr := setup(t)

	require.NoError(t, e.HandleCallback(context.Background(), press("bogus")))
	require.Empty(t, msgr.sent)
	require.Empty(t, store.subs)
}

func TestStoreFailure_RepliesTryAgain(t *testing.T) {
	e, store, msgr := setup(t)
	store.err = errors.New("disk full")

	err := e.HandleCallback(context.Background(), press(TokenToggleActive))
	require.Error(t, err)
	require.Equal(t, []string{msgTryAgain}, msgr.texts())
	require.True(t, stored(t, store).IsActive)
}

func TestHandle_DispatchesByType(t *testing.T) {
	e, _, msgr := setup(t)
	ctx := context.Background()

	require.NoError(t, e.Handle(ctx, text("/status")))
	require.NoError(t, e.Handle(ctx, press(TokenShowStatus)))
	require.Len(t, msgr.sent, 2)
}

func TestParsePairs(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"eur-brl, USD-EUR", "EUR-BRL,USD-EUR"},
		{"usd-brl,USD-BRL, Usd-Brl", "USD-BRL"},
		{"btc-usd, bad, a-b-c, eth - usd", "BTC-USD,ETH-USD"},
		{" , ,", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, domain.PairSetKey(ParsePairs(tt.input)), "input %q", tt.input)
	}
}

func TestCommandForText(t *testing.T) {
	require.Equal(t, CmdStart, CommandForText("/Start"))
	require.Equal(t, CmdStart, CommandForText("/start@QuoteBot"))
	require.Equal(t, CmdStart, CommandForText("/help"))
	require.Equal(t, CmdSetPairs, CommandForText("/moedas"))
	require.Equal(t, CmdNone, CommandForText("/start now"))
	require.Equal(t, CmdNone, CommandForText("61"))
}
