// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rovshanmuradov/yozoon/internal/events"
	"github.com/rovshanmuradov/yozoon/internal/sale"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotInitialized is returned when the ledger schema has not been
	// migrated yet.
	ErrNotInitialized = errors.New("ledger not initialized")
)

// JournalEntry is a committed event together with the state version that
// produced it.
type JournalEntry struct {
	Seq         int64
	Version     uint64
	Event       events.Event
	CommittedAt time.Time
}

// Ledger определяет хранилище состояния продажи с журналом событий
type Ledger interface {
	sale.Store

	// Journal returns entries with Seq greater than afterSeq, oldest first.
	Journal(ctx context.Context, afterSeq int64, limit int) ([]JournalEntry, error)

	// Миграции схемы
	RunMigrations(ctx context.Context) error
}
