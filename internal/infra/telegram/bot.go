package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"quote_notifier/internal/conversation"
	"quote_notifier/internal/domain"
	"quote_notifier/internal/event"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	defaultWorkers     = 16
	defaultPollTimeout = 60
	workerQueueSize    = 64
)

// BotAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type BotAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handler consumes inbound chat events.
type Handler interface {
	Handle(ctx context.Context, ev event.Event) error
}

// Bot long-polls Telegram, hands updates to the handler and delivers
// outbound messages. Updates are sharded by chat over a fixed set of
// workers, so one chat's events are handled in arrival order while
// different chats proceed in parallel.
type Bot struct {
	api         BotAPI
	handler     Handler
	workers     int
	pollTimeout int
	menu        tgbotapi.InlineKeyboardMarkup
}

var _ domain.Messenger = (*Bot)(nil)

// NewBotAPI authorizes against Telegram with token.
func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = debug
	slog.Info("✅ Telegram authorized", slog.String("account", api.Self.UserName))
	return api, nil
}

// NewBot creates the adapter. The handler may be set later with SetHandler,
// which lets the conversation engine use the bot as its messenger.
func NewBot(api BotAPI, workers, pollTimeout int) *Bot {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &Bot{
		api:         api,
		workers:     workers,
		pollTimeout: pollTimeout,
		menu:        mainMenu(conversation.MainMenu),
	}
}

// SetHandler sets the inbound event handler. Call before Run.
func (b *Bot) SetHandler(h Handler) {
	b.handler = h
}

// Run receives updates until ctx is done, then waits for queued events.
func (b *Bot) Run(ctx context.Context) error {
	if b.handler == nil {
		return fmt.Errorf("telegram: no handler set")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	// Queued events still finish after ctx is done.
	workCtx := context.WithoutCancel(ctx)

	queues := make([]chan event.Event, b.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan event.Event, workerQueueSize)
		wg.Add(1)
		go func(q <-chan event.Event) {
			defer wg.Done()
			for ev := range q {
				b.dispatch(workCtx, ev)
			}
		}(queues[i])
	}

	slog.Info("🤖 Telegram bot started", slog.Int("workers", b.workers))
	defer func() {
		b.api.StopReceivingUpdates()
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
		slog.Info("Telegram bot stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			ev := toEvent(update)
			if ev == nil {
				continue
			}
			shard := ev.GetChatID() % int64(b.workers)
			if shard < 0 {
				shard = -shard
			}
			select {
			case queues[shard] <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED",
				slog.Int64("chat_id", ev.GetChatID()),
				slog.Any("panic", r),
			)
		}
	}()

	if err := b.handler.Handle(ctx, ev); err != nil {
		slog.Warn("⚠️ Event handling failed",
			slog.Int64("chat_id", ev.GetChatID()),
			slog.String("type", ev.GetType().String()),
			slog.Any("error", err),
		)
	}

	// Acknowledge the callback so the client stops its spinner.
	if cb, ok := ev.(*event.CallbackEvent); ok {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.CallbackID, "")); err != nil {
			slog.Debug("Callback answer failed", slog.Any("error", err))
		}
	}
}

// Send delivers one message. It does not retry.
func (b *Bot) Send(ctx context.Context, msg domain.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	out := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	if msg.WithMenu {
		out.ReplyMarkup = b.menu
	}
	if _, err := b.api.Send(out); err != nil {
		return fmt.Errorf("%w: chat %d: %w", domain.ErrSendFailed, msg.ChatID, err)
	}
	return nil
}

// toEvent converts an update into an inbound event, or nil when irrelevant.
func toEvent(update tgbotapi.Update) event.Event {
	switch {
	case update.Message != nil && update.Message.Chat != nil && update.Message.Text != "":
		m := update.Message
		return &event.TextEvent{
			ChatID:     m.Chat.ID,
			Text:       m.Text,
			SenderName: senderName(m.Chat, m.From),
		}
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		cq := update.CallbackQuery
		return &event.CallbackEvent{
			ChatID:     cq.Message.Chat.ID,
			Token:      cq.Data,
			CallbackID: cq.ID,
			SenderName: senderName(cq.Message.Chat, cq.From),
		}
	}
	return nil
}

// senderName prefers the username and falls back to the first name.
func senderName(chat *tgbotapi.Chat, from *tgbotapi.User) string {
	if chat != nil {
		if chat.UserName != "" {
			return chat.UserName
		}
		if chat.FirstName != "" {
			return chat.FirstName
		}
	}
	if from != nil {
		if from.UserName != "" {
			return from.UserName
		}
		return from.FirstName
	}
	return ""
}

func mainMenu(rows [][]conversation.MenuButton) tgbotapi.InlineKeyboardMarkup {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Token))
		}
		keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}
