// Package gormstore keeps dead letters in Postgres through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gyaneshwarpardhi/shopsynth/internal/deadletter"
)

type deadLetterModel struct {
	ID            string     `gorm:"primaryKey;type:text"`
	Topic         string     `gorm:"type:text;not null;uniqueIndex:dead_letters_topic_event_key"`
	EventID       string     `gorm:"type:text;not null;uniqueIndex:dead_letters_topic_event_key"`
	EventType     string     `gorm:"type:text;not null"`
	Payload       []byte     `gorm:"type:bytea;not null"`
	FirstSeenAt   time.Time  `gorm:"not null;index"`
	LastAttemptAt time.Time  `gorm:"not null"`
	RetryCount    int        `gorm:"not null;default:0"`
	LastError     string     `gorm:"type:text"`
	ResolvedAt    *time.Time `gorm:"index"`
}

func (deadLetterModel) TableName() string {
	return "dead_letters"
}

func modelFromEntry(e deadletter.Entry) deadLetterModel {
	return deadLetterModel{
		ID:            e.ID,
		Topic:         e.Topic,
		EventID:       e.EventID,
		EventType:     e.EventType,
		Payload:       e.Payload,
		FirstSeenAt:   e.FirstSeenAt,
		LastAttemptAt: e.LastAttemptAt,
		RetryCount:    e.RetryCount,
		LastError:     e.LastError,
		ResolvedAt:    e.ResolvedAt,
	}
}

func (m deadLetterModel) toEntry() deadletter.Entry {
	return deadletter.Entry{
		ID:            m.ID,
		Topic:         m.Topic,
		EventID:       m.EventID,
		EventType:     m.EventType,
		Payload:       m.Payload,
		FirstSeenAt:   m.FirstSeenAt.UTC(),
		LastAttemptAt: m.LastAttemptAt.UTC(),
		RetryCount:    m.RetryCount,
		LastError:     m.LastError,
		ResolvedAt:    m.ResolvedAt,
	}
}

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ deadletter.Store = (*Store)(nil)

// Open connects to dsn and pings the server.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("dead-letter dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db, logger), nil
}

func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// Migrate creates the dead_letters table and its indexes.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&deadLetterModel{})
}

func (s *Store) Quarantine(ctx context.Context, e deadletter.Entry) error {
	row := modelFromEntry(e)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "topic"}, {Name: "event_id"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return s.logError("deadletter_quarantine_failed", err, "topic", e.Topic, "event_id", e.EventID)
	}
	return nil
}

func (s *Store) Pending(ctx context.Context, limit int) ([]deadletter.Entry, error) {
	tx := s.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("first_seen_at ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []deadLetterModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, s.logError("deadletter_pending_failed", err)
	}
	out := make([]deadletter.Entry, len(rows))
	for i, r := range rows {
		out[i] = r.toEntry()
	}
	return out, nil
}

func (s *Store) MarkFailed(ctx context.Context, id string, cause error) error {
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	tx := s.db.WithContext(ctx).Model(&deadLetterModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"retry_count":     gorm.Expr("retry_count + 1"),
			"last_error":      lastError,
			"last_attempt_at": s.now().UTC(),
		})
	if tx.Error != nil {
		return s.logError("deadletter_mark_failed_failed", tx.Error, "id", id)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", deadletter.ErrNotFound, id)
	}
	return nil
}

func (s *Store) Resolve(ctx context.Context, id string) error {
	tx := s.db.WithContext(ctx).Model(&deadLetterModel{}).
		Where("id = ?", id).
		Update("resolved_at", s.now().UTC())
	if tx.Error != nil {
		return s.logError("deadletter_resolve_failed", tx.Error, "id", id)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", deadletter.ErrNotFound, id)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) logError(msg string, err error, attrs ...any) error {
	s.logger.Error(msg, append(attrs, "err", err)...)
	return err
}
