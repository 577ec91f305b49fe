package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quote_notifier/internal/domain"
	"quote_notifier/internal/event"
	"quote_notifier/internal/infra"
)

// Engine turns inbound chat events into subscriber mutations and replies.
// Every mutation goes through the store's per-chat Mutate, so it cannot
// overwrite a concurrent scheduler update. Replies are sent only after the
// write returns.
type Engine struct {
	store     domain.SubscriberStore
	messenger domain.Messenger
	metrics   *infra.Metrics
}

// NewEngine creates a conversation engine.
func NewEngine(store domain.SubscriberStore, messenger domain.Messenger, metrics *infra.Metrics) *Engine {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Engine{
		store:     store,
		messenger: messenger,
		metrics:   metrics,
	}
}

// Handle dispatches an inbound event by type.
func (e *Engine) Handle(ctx context.Context, ev event.Event) error {
	switch ev := ev.(type) {
	case *event.TextEvent:
		return e.HandleText(ctx, ev)
	case *event.CallbackEvent:
		return e.HandleCallback(ctx, ev)
	default:
		return fmt.Errorf("unsupported event type %T", ev)
	}
}

// HandleText processes a typed message. Commands win over the pending state,
// so "/start" while awaiting an interval shows the welcome instead of an error.
func (e *Engine) HandleText(ctx context.Context, ev *event.TextEvent) error {
	e.metrics.RecordInbound()
	text := strings.TrimSpace(ev.Text)

	if cmd := CommandForText(text); cmd != CmdNone {
		return e.runCommand(ctx, ev.ChatID, ev.SenderName, cmd)
	}

	var replies []string
	_, err := e.store.Mutate(ctx, ev.ChatID, ev.SenderName, func(sub *domain.Subscriber) bool {
		switch sub.State {
		case domain.StateAwaitingInterval:
			minutes, ok := ParseInterval(text)
			if !ok {
				replies = []string{msgInvalidInterval}
				return false
			}
			sub.MinutesInterval = minutes
			sub.State = domain.StateNormal
			replies = []string{intervalConfirmation(minutes)}
			return true

		case domain.StateAwaitingPairs:
			pairs := ParsePairs(text)
			if len(pairs) == 0 {
				replies = []string{msgInvalidPairs}
				return false
			}
			sub.SetPairs(pairs)
			sub.State = domain.StateNormal
			replies = []string{pairsConfirmation(sub.Pairs)}
			return true

		default:
			replies = []string{msgHint}
			return false
		}
	})
	if err != nil {
		return e.storeFailed(ctx, ev.ChatID, err)
	}

	return e.reply(ctx, ev.ChatID, replies, false)
}

// HandleCallback processes a menu button press. Unknown tokens are ignored.
func (e *Engine) HandleCallback(ctx context.Context, ev *event.CallbackEvent) error {
	e.metrics.RecordInbound()

	cmd := CommandForToken(ev.Token)
	if cmd == CmdNone {
		slog.Debug("Ignoring unknown callback token",
			slog.Int64("chat_id", ev.ChatID),
			slog.String("token", ev.Token),
		)
		return nil
	}
	return e.runCommand(ctx, ev.ChatID, ev.SenderName, cmd)
}

func (e *Engine) runCommand(ctx context.Context, chatID int64, name string, cmd Command) error {
	var (
		replies  []string
		withMenu bool
	)

	sub, err := e.store.Mutate(ctx, chatID, name, func(sub *domain.Subscriber) bool {
		switch cmd {
		case CmdStart:
			replies = []string{msgWelcome, msgAbout, msgInstructions}
			withMenu = true
			return false

		case CmdSetInterval:
			replies = []string{msgAskInterval}
			return setState(sub, domain.StateAwaitingInterval)

		case CmdSetPairs:
			replies = []string{msgAskPairs}
			return setState(sub, domain.StateAwaitingPairs)

		case CmdToggleActive:
			sub.IsActive = !sub.IsActive
			replies = []string{toggleConfirmation(sub.IsActive)}
			return true
		}
		return false
	})
	if err != nil {
		return e.storeFailed(ctx, chatID, err)
	}

	// Status is read from the committed record.
	if cmd == CmdShowStatus {
		replies = []string{StatusText(sub)}
	}

	slog.Info("Command handled",
		slog.Int64("chat_id", chatID),
		slog.String("command", cmd.String()),
		slog.String("state", sub.State.String()),
	)
	return e.reply(ctx, chatID, replies, withMenu)
}

func setState(sub *domain.Subscriber, state domain.BotState) bool {
	if sub.State == state {
		return false
	}
	sub.State = state
	return true
}

// reply sends the messages in order; the menu goes on the last one.
func (e *Engine) reply(ctx context.Context, chatID int64, texts []string, withMenu bool) error {
	var errs []error
	for i, text := range texts {
		msg := domain.OutboundMessage{
			ChatID:   chatID,
			Text:     text,
			WithMenu: withMenu && i == len(texts)-1,
		}
		if err := e.messenger.Send(ctx, msg); err != nil {
			slog.Warn("⚠️ Reply failed",
				slog.Int64("chat_id", chatID),
				slog.Any("error", err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) storeFailed(ctx context.Context, chatID int64, err error) error {
	e.metrics.RecordStoreError()
	slog.Error("❌ Failed to persist subscriber",
		slog.Int64("chat_id", chatID),
		slog.Any("error", err),
	)
	if serr := e.reply(ctx, chatID, []string{msgTryAgain}, false); serr != nil {
		return errors.Join(err, serr)
	}
	return err
}
