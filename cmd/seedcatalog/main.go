// cmd/seedcatalog/main.go: seeds a demo catalog in the legacy layout, with
// variant prices stored as offsets from the base price and no default flag,
// so both migration passes have work to do.
// Usage: go run ./cmd/seedcatalog [-n 50]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"storefront/internal/config"
	"storefront/internal/infra"
	"storefront/internal/model"
	"storefront/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type legacyVariant struct {
	ID    string          `json:"id"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
	Color string          `json:"color,omitempty"`
}

func main() {
	n := flag.Int("n", 50, "number of products to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	infra.SetupLogger(cfg.Env, cfg.LogLevel)

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	repo := repository.NewProductRepository(db)
	ctx := context.Background()

	for i := 0; i < *n; i++ {
		p, err := demoProduct(i)
		if err != nil {
			log.Fatal().Err(err).Msg("build demo product")
		}
		if err := repo.Create(ctx, p); err != nil {
			log.Fatal().Err(err).Int("index", i).Msg("insert error")
		}
	}
	fmt.Fprintf(os.Stdout, "seeded %d products\n", *n)
}

// demoProduct returns a mix of shapes: every fifth product has no variants,
// every seventh uses numeric variant ids.
func demoProduct(i int) (*model.Product, error) {
	base := decimal.NewFromInt(int64(20 + i%40)).Add(decimal.RequireFromString("0.99"))
	p := &model.Product{
		Name:      fmt.Sprintf("Demo tee #%03d", i+1),
		BasePrice: base,
		BaseStock: 10 + i%5,
	}
	if i%5 == 0 {
		return p, nil
	}

	variants := []legacyVariant{
		{ID: "s", Price: decimal.NewFromInt(-2), Stock: i % 4, Color: "black"},
		{ID: "m", Price: decimal.Zero, Stock: 3},
		{ID: "l", Price: decimal.NewFromInt(3), Stock: 1},
	}
	var raw []byte
	var err error
	if i%7 == 0 {
		numeric := make([]map[string]interface{}, len(variants))
		for j, v := range variants {
			numeric[j] = map[string]interface{}{"id": 100 + j, "price": v.Price, "stock": v.Stock}
		}
		raw, err = json.Marshal(map[string]interface{}{"variants": numeric})
	} else {
		raw, err = json.Marshal(map[string]interface{}{"variants": variants})
	}
	if err != nil {
		return nil, err
	}
	p.Variants = datatypes.JSON(raw)
	return p, nil
}
