package backend

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

// ErrRejected marks a reservation the book refused for a business reason
// (capacity, unknown restaurant). The user sees a specific failure message;
// the pending capability is preserved.
var ErrRejected = errors.New("reservation rejected")

type Restaurant struct {
	bun.BaseModel `bun:"table:restaurants,alias:r"`

	ID         int64    `bun:"id,pk,autoincrement" json:"id"`
	Name       string   `bun:"name,notnull" json:"name"`
	Cuisine    string   `bun:"cuisine" json:"cuisine"`
	Location   string   `bun:"location" json:"location"`
	PriceRange string   `bun:"price_range" json:"price_range"`
	Rating     float64  `bun:"rating" json:"rating"`
	Seating    []string `bun:"seating,array" json:"seating,omitempty"`
	Capacity   int      `bun:"capacity" json:"capacity"`
}

type Reservation struct {
	bun.BaseModel `bun:"table:reservations,alias:rv"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	RestaurantID int64     `bun:"restaurant_id" json:"restaurant_id,omitempty"`
	GuestName    string    `bun:"guest_name,notnull" json:"guest_name"`
	At           time.Time `bun:"at,notnull" json:"at"`
	PartySize    int       `bun:"party_size,notnull" json:"party_size"`
	Status       string    `bun:"status,notnull,default:'confirmed'" json:"status"`
}

// SearchFilter holds optional restaurant filters; empty fields do not
// constrain. Matching is case-insensitive substring.
type SearchFilter struct {
	Cuisine    string `json:"cuisine,omitempty"`
	Location   string `json:"location,omitempty"`
	PriceRange string `json:"price_range,omitempty"`
	Seating    string `json:"seating,omitempty"`
}

func (f SearchFilter) Empty() bool {
	return f.Cuisine == "" && f.Location == "" && f.PriceRange == "" && f.Seating == ""
}

// RestaurantIndex serves restaurant search. Results come back sorted by
// rating, best first.
type RestaurantIndex interface {
	Search(ctx context.Context, filter SearchFilter, limit int) ([]Restaurant, error)
	TopRated(ctx context.Context, limit int) ([]Restaurant, error)
}

// ReservationBook records confirmed reservations. Create either persists and
// returns the stored reservation or fails; a business refusal wraps
// ErrRejected.
type ReservationBook interface {
	Create(ctx context.Context, r Reservation) (Reservation, error)
}

// Notifier delivers reservation confirmations downstream. Best-effort: the
// reservation capability logs failures and does not surface them.
type Notifier interface {
	NotifyReservation(ctx context.Context, r Reservation) error
}
