package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
)

type DrawRepository struct {
	db *gorm.DB
}

func NewDrawRepository(db *gorm.DB) *DrawRepository {
	return &DrawRepository{db: db}
}

// AutoMigrate creates the draw tables.
func (r *DrawRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&domain.DrawRecord{}, &domain.DrawEntry{})
}

// Create inserts the draw and its snapshot entries in one transaction.
func (r *DrawRepository) Create(ctx context.Context, record *domain.DrawRecord) error {
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries := record.Entries
		if err := tx.Omit("Entries").Create(record).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := tx.CreateInBatches(&entries, 500).Error; err != nil {
				return err
			}
		}
		record.Entries = entries
		return nil
	})
}

func (r *DrawRepository) UpdateResult(ctx context.Context, requestID string, result domain.DrawResult) error {
	res := r.db.WithContext(ctx).Model(&domain.DrawRecord{}).
		Where("request_id = ?", requestID).
		Updates(map[string]interface{}{
			"status":       domain.DrawStatusCompleted,
			"winner":       result.Winner,
			"winner_index": result.WinnerIndex,
			"random_value": result.RandomValue,
			"completed_at": result.CompletedAt,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrDrawNotFound
	}
	return nil
}

// Get loads a draw with its entries in position order.
func (r *DrawRepository) Get(ctx context.Context, requestID string) (*domain.DrawRecord, error) {
	var rec domain.DrawRecord
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("request_id = ?", requestID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDrawNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecent returns the newest draws first, without entries.
func (r *DrawRepository) ListRecent(ctx context.Context, limit int) ([]*domain.DrawRecord, error) {
	var recs []*domain.DrawRecord
	if limit <= 0 {
		return recs, nil
	}
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
