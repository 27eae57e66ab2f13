package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/translog/internal/payment/domain"
	"gorm.io/gorm"
)

const eventColumns = `id, provider, provider_event_id, event_type, application_id,
	payload, occurred_at, received_at, attempts, last_error, processed_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*domain.EventRecord, error) {
	var item domain.EventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+`
		 FROM webhook_events
		 WHERE provider = ? AND provider_event_id = ?
		 LIMIT 1`,
		provider,
		providerEventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// FindEventForUpdate locks the ledger row on postgres. SQLite serialises
// writers at the database level, so the plain read is enough there.
func (r *repo) FindEventForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.EventRecord, error) {
	query := `SELECT ` + eventColumns + `
	 FROM webhook_events
	 WHERE id = ?`
	if db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var item domain.EventRecord
	if err := db.WithContext(ctx).Raw(query, id).Scan(&item).Error; err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (
			id, provider, provider_event_id, event_type, application_id,
			payload, occurred_at, received_at, attempts, last_error, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		event.ID,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		event.ApplicationID,
		event.Payload,
		event.OccurredAt,
		event.ReceivedAt,
		event.Attempts,
		event.LastError,
		event.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkProcessed reports false when another delivery already marked the row.
func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET processed_at = ?, attempts = attempts + 1, last_error = ''
		 WHERE id = ? AND processed_at IS NULL`,
		processedAt,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) RecordFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET attempts = attempts + 1, last_error = ?
		 WHERE id = ? AND processed_at IS NULL`,
		lastError,
		id,
	).Error
}
