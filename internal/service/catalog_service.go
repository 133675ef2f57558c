package service

import (
	"context"
	"errors"
	"time"

	"storefront/internal/dto"
	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/variant"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var ErrProductNotFound = errors.New("product not found")

// maxHistoryLimit is both the default and the largest page of price changes.
const maxHistoryLimit = 50

// CatalogService answers the storefront's read-side questions about a
// product: what it costs, how much is in stock, and whether a variant can be
// bought. It never writes.
type CatalogService interface {
	Pricing(ctx context.Context, id uuid.UUID) (*dto.PricingResponse, error)
	CheckSelection(ctx context.Context, id uuid.UUID, variantID string) (*dto.SelectionResponse, error)
	PriceHistory(ctx context.Context, id uuid.UUID, page, limit int) (*dto.PriceChangeListResponse, error)
}

type catalogService struct {
	products repository.ProductRepository
	changes  repository.PriceChangeRepository
	cache    PricingCache
}

// NewCatalogService builds the service. cache may be nil.
func NewCatalogService(products repository.ProductRepository, changes repository.PriceChangeRepository, cache PricingCache) CatalogService {
	return &catalogService{products: products, changes: changes, cache: cache}
}

func (s *catalogService) Pricing(ctx context.Context, id uuid.UUID) (*dto.PricingResponse, error) {
	var gen int64 = -1
	if s.cache != nil {
		resp, g, ok := s.cache.Get(ctx, id)
		if ok {
			return resp, nil
		}
		gen = g
	}

	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	rp := resolvable(p)

	resp := &dto.PricingResponse{
		ProductID:     p.ID.String(),
		Name:          p.Name,
		DisplayPrice:  variant.DisplayPrice(rp),
		OriginalPrice: variant.OriginalPrice(rp),
		TotalStock:    variant.TotalStock(rp.Doc, rp.BaseStock),
		Variants:      []dto.VariantResponse{},
	}
	if def := variant.DefaultVariant(rp.Doc); def != nil {
		resp.DefaultVariantID = &def.ID
	}
	if rp.Doc != nil {
		for i := range rp.Doc.Variants {
			resp.Variants = append(resp.Variants, variantToDTO(&rp.Doc.Variants[i]))
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, id, gen, resp)
	}
	return resp, nil
}

func (s *catalogService) CheckSelection(ctx context.Context, id uuid.UUID, variantID string) (*dto.SelectionResponse, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	rp := resolvable(p)

	sel := variant.ValidateSelection(rp.Doc, variantID)
	resp := &dto.SelectionResponse{
		Valid:  sel.Valid,
		Reason: string(sel.Reason),
		Price:  variant.PriceOf(rp.BasePrice, sel.Variant),
	}
	if sel.Variant != nil {
		v := variantToDTO(sel.Variant)
		resp.Variant = &v
	}
	return resp, nil
}

func (s *catalogService) PriceHistory(ctx context.Context, id uuid.UUID, page, limit int) (*dto.PriceChangeListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	rows, total, err := s.changes.ListByProduct(ctx, id, page, limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.PriceChangeItem, 0, len(rows))
	for i := range rows {
		data = append(data, priceChangeToDTO(&rows[i]))
	}
	return &dto.PriceChangeListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}

func (s *catalogService) load(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	return p, err
}

// resolvable degrades a malformed document to base-product semantics. The
// product keeps selling at its base price until the document is repaired.
func resolvable(p *model.Product) variant.Product {
	rp, err := p.Resolvable()
	if err != nil {
		log.Warn().Err(err).Str("product_id", p.ID.String()).Msg("malformed variant document, using base price")
	}
	return rp
}

func variantToDTO(v *variant.Variant) dto.VariantResponse {
	return dto.VariantResponse{
		ID:        v.ID,
		Price:     v.Price,
		Stock:     v.Stock,
		IsDefault: v.IsDefault,
		InStock:   v.Stock > 0,
	}
}

func priceChangeToDTO(c *model.PriceChange) dto.PriceChangeItem {
	return dto.PriceChangeItem{
		ID:          c.ID.String(),
		ProductID:   c.ProductID.String(),
		RunID:       c.RunID.String(),
		VariantID:   c.VariantID,
		Pass:        c.Pass,
		PriceBefore: c.PriceBefore,
		PriceAfter:  c.PriceAfter,
		CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
	}
}
