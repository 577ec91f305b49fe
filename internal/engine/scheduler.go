package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"quote_notifier/internal/domain"
	"quote_notifier/internal/infra"

	"github.com/google/uuid"
)

const (
	DefaultTickInterval  = 30 * time.Second
	DefaultConcurrency   = 8
	DefaultShutdownGrace = 5 * time.Second
)

// Config tunes the scheduler loop.
type Config struct {
	TickInterval  time.Duration
	Concurrency   int           // Max subscribers processed in parallel per tick
	ShutdownGrace time.Duration // How long an in-flight tick may run after stop
}

// TickReport summarizes one scheduler pass.
type TickReport struct {
	TickID  string
	Due     int // Due in the listing
	Sent    int
	Failed  int // Claimed but not delivered (persist or send failure)
	Skipped int // No longer due on the fresh record
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomeSkipped
)

// Scheduler periodically finds due subscribers and sends them their quotes.
// There is no timer per subscriber: every tick scans the store.
// The notification timestamp is advanced before dispatch, so a failed send
// waits for the next interval instead of being retried.
type Scheduler struct {
	cfg       Config
	store     domain.SubscriberStore
	quotes    domain.QuoteSource
	messenger domain.Messenger
	metrics   *infra.Metrics
	now       domain.Clock

	running atomic.Bool
}

// NewScheduler creates a scheduler. Zero config fields take the defaults.
func NewScheduler(cfg Config, store domain.SubscriberStore, quotes domain.QuoteSource, messenger domain.Messenger, metrics *infra.Metrics) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		quotes:    quotes,
		messenger: messenger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Run ticks immediately and then every TickInterval until ctx is done.
// A tick that fires while the previous one is still running is skipped.
// On stop, the in-flight tick gets ShutdownGrace to finish before its
// context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("⏰ Scheduler started",
		slog.Duration("tick", s.cfg.TickInterval),
		slog.Int("concurrency", s.cfg.Concurrency),
	)

	// In-flight work outlives ctx until the grace period ends.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	var wg sync.WaitGroup
	fire := func() {
		if !s.running.CompareAndSwap(false, true) {
			s.metrics.RecordTickSkipped()
			slog.Warn("⚠️ Previous tick still running, skipping")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.running.Store(false)
			s.Tick(workCtx, s.now())
		}()
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	fire()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopping...")
			s.drain(&wg, cancelWork)
			return nil
		case <-ticker.C:
			fire()
		}
	}
}

func (s *Scheduler) drain(wg *sync.WaitGroup, cancelWork context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Scheduler stopped")
	case <-time.After(s.cfg.ShutdownGrace):
		slog.Warn("⚠️ Grace period elapsed, cancelling in-flight tick",
			slog.Duration("grace", s.cfg.ShutdownGrace),
		)
		cancelWork()
		<-done
	}
}

// Tick runs one pass at now. Failures are confined to the subscriber they
// happen to; the rest of the pass continues.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) TickReport {
	start := time.Now()
	report := TickReport{TickID: uuid.NewString()}
	log := slog.With(slog.String("tick_id", report.TickID))

	subs, err := s.store.ListAll(ctx)
	if err != nil {
		s.metrics.RecordStoreError()
		log.Error("❌ Failed to list subscribers", slog.Any("error", err))
		return report
	}

	due := make([]domain.Subscriber, 0, len(subs))
	for _, sub := range subs {
		if sub.IsDue(now) {
			due = append(due, sub)
		}
	}
	report.Due = len(due)
	s.metrics.RecordDue(len(due))

	var (
		wg                    sync.WaitGroup
		sent, failed, skipped atomic.Int32
	)
	semaphore := make(chan struct{}, s.cfg.Concurrency)

	for _, sub := range due {
		wg.Add(1)
		semaphore <- struct{}{} // Acquire
		go func(sub domain.Subscriber) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release

			switch s.notify(ctx, log, sub.ChatID, now) {
			case outcomeSent:
				sent.Add(1)
			case outcomeFailed:
				failed.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			}
		}(sub)
	}
	wg.Wait()

	report.Sent = int(sent.Load())
	report.Failed = int(failed.Load())
	report.Skipped = int(skipped.Load())
	s.metrics.RecordTick(time.Since(start), time.Now())

	if report.Due > 0 {
		log.Info("Tick finished",
			slog.Int("due", report.Due),
			slog.Int("sent", report.Sent),
			slog.Int("failed", report.Failed),
			slog.Int("skipped", report.Skipped),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
	return report
}

// notify claims the slot by persisting LastNotify, then fetches and sends.
func (s *Scheduler) notify(ctx context.Context, log *slog.Logger, chatID int64, now time.Time) (result outcome) {
	log = log.With(slog.Int64("chat_id", chatID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			result = outcomeFailed
		}
	}()

	// Only the timestamp is touched; conversation fields come from the fresh read.
	claimed := false
	sub, err := s.store.Mutate(ctx, chatID, "", func(cur *domain.Subscriber) bool {
		if !cur.IsDue(now) {
			return false
		}
		cur.LastNotify = now
		claimed = true
		return true
	})
	if err != nil {
		s.metrics.RecordStoreError()
		log.Error("❌ Failed to persist notification time, skipping", slog.Any("error", err))
		return outcomeFailed
	}
	if !claimed {
		return outcomeSkipped
	}

	quotes, qerr := s.quotes.Quotes(ctx, sub.Pairs)
	if qerr != nil {
		log.Warn("⚠️ Quotes unavailable", slog.Any("error", qerr))
	}

	msg := domain.OutboundMessage{
		ChatID: chatID,
		Text:   FormatQuotes(quotes, qerr, sub.Pairs),
	}
	if err := s.messenger.Send(ctx, msg); err != nil {
		s.metrics.RecordDispatchFailure()
		log.Warn("⚠️ Dispatch failed, next attempt at next interval",
			slog.Time("next", sub.NextNotify()),
			slog.Any("error", err),
		)
		return outcomeFailed
	}

	s.metrics.RecordSent()
	return outcomeSent
}
