package app

import (
	"context"
	"fmt"
	"log/slog"

	"quote_notifier/internal/conversation"
	"quote_notifier/internal/engine"
	"quote_notifier/internal/infra"
	"quote_notifier/internal/infra/awesomeapi"
	"quote_notifier/internal/infra/httpserver"
	"quote_notifier/internal/infra/storage"
	"quote_notifier/internal/infra/telegram"
	"quote_notifier/internal/service"

	"golang.org/x/sync/errgroup"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config       *infra.Config
	Storage      *storage.Storage
	Quotes       *service.QuoteService
	Conversation *conversation.Engine
	Scheduler    *engine.Scheduler
	Bot          *telegram.Bot
	HTTP         *httpserver.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads the config and wires every component.
func (b *Bootstrap) Initialize(configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("🚀 Bootstrapping quote notifier...", slog.String("version", cfg.App.Version))

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.Path))

	// 4. Quote provider behind cache and retry policy
	client := awesomeapi.NewClient(
		awesomeapi.WithBaseURL(cfg.AwesomeAPI.URL),
		awesomeapi.WithHTTPClient(awesomeapi.NewHTTPClient(cfg.AwesomeAPI.Token, cfg.HTTPTimeout())),
		awesomeapi.WithUserAgent(infra.DefaultUserAgent),
	)
	retry := infra.DefaultRetryPolicy()
	retry.MaxRetries = cfg.AwesomeAPI.MaxRetries
	retry.Delay = cfg.RetryDelay()
	b.Quotes = service.NewQuoteService(client, service.NewQuoteCache(cfg.CacheTTL(), nil), retry, infra.GlobalMetrics)

	// 5. Telegram and the conversation engine
	api, err := telegram.NewBotAPI(cfg.Telegram.Token, cfg.Telegram.Debug)
	if err != nil {
		return err
	}
	b.Bot = telegram.NewBot(api, cfg.Telegram.Workers, cfg.Telegram.PollTimeout)
	b.Conversation = conversation.NewEngine(store, b.Bot, infra.GlobalMetrics)
	b.Bot.SetHandler(b.Conversation)

	// 6. Scheduler
	b.Scheduler = engine.NewScheduler(engine.Config{
		TickInterval:  cfg.TickInterval(),
		Concurrency:   cfg.Scheduler.Concurrency,
		ShutdownGrace: cfg.ShutdownGrace(),
	}, store, b.Quotes, b.Bot, infra.GlobalMetrics)

	// 7. Health / metrics endpoint
	b.HTTP, err = httpserver.NewServer(cfg.HTTP.Addr, store, infra.GlobalMetrics)
	if err != nil {
		return fmt.Errorf("failed to build http server: %w", err)
	}

	return nil
}

// Run starts the bot, the scheduler and the HTTP server and blocks until ctx
// is done and all of them have stopped.
func (b *Bootstrap) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.Bot.Run(gctx) })
	g.Go(func() error { return b.Scheduler.Run(gctx) })
	g.Go(b.HTTP.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), b.Config.ShutdownGrace())
		defer cancel()
		return b.HTTP.Shutdown(shutdownCtx)
	})

	slog.Info("✨ Quote notifier fully operational. Press Ctrl+C to exit.")
	return g.Wait()
}

// Close releases the database.
func (b *Bootstrap) Close() {
	if b.Storage == nil {
		return
	}
	if err := b.Storage.Close(); err != nil {
		slog.Warn("Failed to close database", slog.Any("error", err))
	}
}

