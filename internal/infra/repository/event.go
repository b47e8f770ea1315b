package repository

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/fronsciers/doci-gateway/internal/domain"
	"github.com/fronsciers/doci-gateway/internal/infra/database/models"
)

const recentEventsKept = 100

type EventRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewEventRepository(db *gorm.DB, rdb *redis.Client) *EventRepository {
	return &EventRepository{db: db, rdb: rdb}
}

func recentEventsKey(code string) string {
	return "doci:recent:" + code
}

// Append writes the event to postgres and pushes it onto the per-code recent
// list in redis. The redis list is a bounded convenience copy; losing it only
// costs a fallback query.
func (r *EventRepository) Append(ctx context.Context, event domain.ResolutionEvent) error {
	record := models.ResolutionEvent{
		ID:           event.ID,
		IdentifierID: event.Code,
		Requester:    event.Requester,
		CDate:        event.Timestamp,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return err
	}

	if r.rdb != nil {
		value, err := json.Marshal(event)
		if err == nil {
			key := recentEventsKey(event.Code)
			pipe := r.rdb.Pipeline()
			pipe.LPush(ctx, key, value)
			pipe.LTrim(ctx, key, 0, recentEventsKept-1)
			if _, err := pipe.Exec(ctx); err != nil {
				slog.WarnContext(ctx, "failed to push recent event", slog.String("error", err.Error()))
			}
		}
	}

	return nil
}

func (r *EventRepository) Recent(ctx context.Context, code string, limit int) ([]domain.ResolutionEvent, error) {
	if limit <= 0 || limit > recentEventsKept {
		limit = recentEventsKept
	}

	if r.rdb != nil {
		entries, err := r.rdb.LRange(ctx, recentEventsKey(code), 0, int64(limit)-1).Result()
		if err == nil && len(entries) > 0 {
			events := make([]domain.ResolutionEvent, 0, len(entries))
			for _, entry := range entries {
				var event domain.ResolutionEvent
				if err := json.Unmarshal([]byte(entry), &event); err != nil {
					continue
				}
				events = append(events, event)
			}
			return events, nil
		}
	}

	var records []models.ResolutionEvent
	err := r.db.WithContext(ctx).
		Where("identifier_id = ?", code).
		Order("c_date DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	events := make([]domain.ResolutionEvent, 0, len(records))
	for _, record := range records {
		events = append(events, domain.ResolutionEvent{
			ID:        record.ID,
			Code:      record.IdentifierID,
			Requester: record.Requester,
			Timestamp: record.CDate,
		})
	}
	return events, nil
}

func (r *EventRepository) Count(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ResolutionEvent{}).
		Where("identifier_id = ?", code).
		Count(&count).Error
	return count, err
}
