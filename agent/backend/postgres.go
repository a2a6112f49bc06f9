package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewDB opens a bun handle over Postgres.
func NewDB(dsn string) (*bun.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// PGIndex serves restaurant search from Postgres.
type PGIndex struct {
	db *bun.DB
}

func NewPGIndex(db *bun.DB) *PGIndex {
	return &PGIndex{db: db}
}

func (p *PGIndex) Search(ctx context.Context, filter SearchFilter, limit int) ([]Restaurant, error) {
	q := p.db.NewSelect().Model((*Restaurant)(nil))
	if filter.Cuisine != "" {
		q = q.Where("cuisine ILIKE ?", "%"+filter.Cuisine+"%")
	}
	if filter.Location != "" {
		q = q.Where("location ILIKE ?", "%"+filter.Location+"%")
	}
	if filter.PriceRange != "" {
		q = q.Where("price_range ILIKE ?", "%"+filter.PriceRange+"%")
	}
	if filter.Seating != "" {
		q = q.Where("EXISTS (SELECT 1 FROM unnest(seating) s WHERE s ILIKE ?)", "%"+filter.Seating+"%")
	}
	q = q.Order("rating DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var restaurants []Restaurant
	if err := q.Scan(ctx, &restaurants); err != nil {
		return nil, fmt.Errorf("search restaurants: %w", err)
	}
	return restaurants, nil
}

func (p *PGIndex) TopRated(ctx context.Context, limit int) ([]Restaurant, error) {
	if limit <= 0 {
		limit = 3
	}
	var restaurants []Restaurant
	err := p.db.NewSelect().
		Model((*Restaurant)(nil)).
		Order("rating DESC").
		Limit(limit).
		Scan(ctx, &restaurants)
	if err != nil {
		return nil, fmt.Errorf("top rated restaurants: %w", err)
	}
	return restaurants, nil
}

// PGBook records reservations in Postgres with a capacity check.
type PGBook struct {
	db *bun.DB
}

func NewPGBook(db *bun.DB) *PGBook {
	return &PGBook{db: db}
}

func (p *PGBook) Create(ctx context.Context, r Reservation) (Reservation, error) {
	if r.PartySize <= 0 {
		return Reservation{}, fmt.Errorf("%w: party size must be positive", ErrRejected)
	}
	if r.Status == "" {
		r.Status = "confirmed"
	}

	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if r.RestaurantID != 0 {
			var restaurant Restaurant
			err := tx.NewSelect().
				Model(&restaurant).
				Where("id = ?", r.RestaurantID).
				Scan(ctx)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: unknown restaurant id=%d", ErrRejected, r.RestaurantID)
			}
			if err != nil {
				return fmt.Errorf("load restaurant: %w", err)
			}
			if restaurant.Capacity > 0 && r.PartySize > restaurant.Capacity {
				return fmt.Errorf("%w: party of %d exceeds capacity %d", ErrRejected, r.PartySize, restaurant.Capacity)
			}
		}

		if _, err := tx.NewInsert().Model(&r).Exec(ctx); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return r, nil
}
