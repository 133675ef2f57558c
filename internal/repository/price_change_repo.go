package repository

import (
	"context"

	"storefront/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PriceChangeRepository interface {
	CreateBatch(ctx context.Context, changes []model.PriceChange) error
	ListByProduct(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.PriceChange, int64, error)
}

type priceChangeRepository struct{ db *gorm.DB }

func NewPriceChangeRepository(db *gorm.DB) PriceChangeRepository {
	return &priceChangeRepository{db: db}
}

func (r *priceChangeRepository) CreateBatch(ctx context.Context, changes []model.PriceChange) error {
	if len(changes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&changes).Error
}

// ListByProduct returns paginated price-change records for one product,
// newest first (append-only table, so this is reverse insert order).
func (r *priceChangeRepository) ListByProduct(
	ctx context.Context,
	productID uuid.UUID,
	page, limit int,
) ([]model.PriceChange, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 50
	}

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&model.PriceChange{}).
		Where("product_id = ?", productID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []model.PriceChange
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}
