package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"quote_notifier/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/puzpuzpuz/xsync/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists subscriber records in SQLite.
// Every write for a chat holds that chat's lock, so a read-modify-write from
// the scheduler can never interleave with one from the chat handler.
type Storage struct {
	db    *gorm.DB
	locks *xsync.Map[int64, *sync.Mutex]
}

var _ domain.SubscriberStore = (*Storage)(nil)

// NewStorage opens (or creates) the SQLite database at dbPath.
func NewStorage(dbPath string) (*Storage, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return newStorage(db)
}

func newStorage(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&domain.Subscriber{}, &domain.CurrencyPair{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// SQLite allows a single writer; one connection avoids SQLITE_BUSY between chats.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return &Storage{
		db:    db,
		locks: xsync.NewMap[int64, *sync.Mutex](),
	}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// lock acquires the per-chat mutex and returns its unlock func.
func (s *Storage) lock(chatID int64) func() {
	mu, _ := s.locks.LoadOrStore(chatID, &sync.Mutex{})
	mu.Lock()
	return mu.Unlock
}

// ======================================================================================
// Subscriber Operations
// ======================================================================================

// GetByID retrieves a subscriber with its pairs. Returns nil, nil when absent.
func (s *Storage) GetByID(ctx context.Context, chatID int64) (*domain.Subscriber, error) {
	return s.get(s.db.WithContext(ctx), chatID)
}

func (s *Storage) get(db *gorm.DB, chatID int64) (*domain.Subscriber, error) {
	var sub domain.Subscriber
	err := db.Preload("Pairs", orderByPosition).First(&sub, "chat_id = ?", chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListAll retrieves every subscriber with pairs in insertion order.
func (s *Storage) ListAll(ctx context.Context) ([]domain.Subscriber, error) {
	var subs []domain.Subscriber
	err := s.db.WithContext(ctx).Preload("Pairs", orderByPosition).Order("chat_id").Find(&subs).Error
	return subs, err
}

// GetOrCreate returns the existing subscriber or inserts one with defaults.
func (s *Storage) GetOrCreate(ctx context.Context, chatID int64, username string) (*domain.Subscriber, error) {
	unlock := s.lock(chatID)
	defer unlock()
	return s.getOrCreate(s.db.WithContext(ctx), chatID, username)
}

func (s *Storage) getOrCreate(db *gorm.DB, chatID int64, username string) (*domain.Subscriber, error) {
	existing, err := s.get(db, chatID)
	if err != nil || existing != nil {
		return existing, err
	}

	sub := domain.NewSubscriber(chatID, username)
	if err := db.Omit("Pairs").Create(sub).Error; err != nil {
		return nil, fmt.Errorf("create subscriber %d: %w", chatID, err)
	}
	return sub, nil
}

// Upsert inserts the subscriber or overwrites its mutable fields, pairs included.
func (s *Storage) Upsert(ctx context.Context, sub *domain.Subscriber) error {
	unlock := s.lock(sub.ChatID)
	defer unlock()
	return s.upsert(s.db.WithContext(ctx), sub)
}

func (s *Storage) upsert(db *gorm.DB, sub *domain.Subscriber) error {
	sub.SetPairs(sub.Pairs)
	if sub.MinutesInterval < 0 {
		sub.MinutesInterval = 0
	}

	return db.Transaction(func(tx *gorm.DB) error {
		// Save writes every column, including false/zero values.
		if err := tx.Omit("Pairs").Save(sub).Error; err != nil {
			return fmt.Errorf("save subscriber %d: %w", sub.ChatID, err)
		}

		// Pairs are replaced as a whole.
		if err := tx.Where("chat_id = ?", sub.ChatID).Delete(&domain.CurrencyPair{}).Error; err != nil {
			return fmt.Errorf("clear pairs %d: %w", sub.ChatID, err)
		}
		if len(sub.Pairs) == 0 {
			return nil
		}
		for i := range sub.Pairs {
			sub.Pairs[i].ID = 0
		}
		if err := tx.Create(&sub.Pairs).Error; err != nil {
			return fmt.Errorf("insert pairs %d: %w", sub.ChatID, err)
		}
		return nil
	})
}

// Mutate applies fn to the freshly read record under the chat's lock and
// persists it once if fn returns true. The returned subscriber reflects the
// stored state.
func (s *Storage) Mutate(ctx context.Context, chatID int64, username string, fn func(sub *domain.Subscriber) bool) (*domain.Subscriber, error) {
	unlock := s.lock(chatID)
	defer unlock()

	db := s.db.WithContext(ctx)
	sub, err := s.getOrCreate(db, chatID, username)
	if err != nil {
		return nil, err
	}

	before := sub.Clone()
	if !fn(sub) {
		return before, nil
	}
	sub.ChatID = chatID

	if err := s.upsert(db, sub); err != nil {
		return before, err
	}
	return sub, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}
