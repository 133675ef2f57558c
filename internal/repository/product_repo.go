package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrStaleWrite is returned by conditional writes when the row changed (or
// was deleted) after it was read.
var ErrStaleWrite = errors.New("product changed since it was read")

// ProductRepository defines the data access contract for catalog products.
// Services depend on this interface, not on the concrete GORM implementation,
// so they can be unit tested against in-memory stubs.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)

	// ListForMigration snapshots every non-deleted product carrying a
	// variant document, oldest first.
	ListForMigration(ctx context.Context) ([]model.Product, error)

	// UpdateVariantsIfUnchanged replaces the variant document only if the row
	// still carries readAt as its updated_at. Returns ErrStaleWrite otherwise.
	UpdateVariantsIfUnchanged(ctx context.Context, id uuid.UUID, doc []byte, readAt time.Time) error
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("id = ? AND deleted = false", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) ListForMigration(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("deleted = false AND variants IS NOT NULL").
		Order("created_at ASC, id ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) UpdateVariantsIfUnchanged(ctx context.Context, id uuid.UUID, doc []byte, readAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND updated_at = ? AND deleted = false", id, readAt).
		Updates(map[string]interface{}{
			"variants":   datatypes.JSON(doc),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	return nil
}
