package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryIndex is an in-process RestaurantIndex over a fixed catalog.
type MemoryIndex struct {
	restaurants []Restaurant
}

func NewMemoryIndex(restaurants []Restaurant) *MemoryIndex {
	sorted := append([]Restaurant(nil), restaurants...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rating > sorted[j].Rating
	})
	return &MemoryIndex{restaurants: sorted}
}

func (m *MemoryIndex) Search(ctx context.Context, filter SearchFilter, limit int) ([]Restaurant, error) {
	var out []Restaurant
	for _, r := range m.restaurants {
		if matches(r, filter) {
			out = append(out, r)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryIndex) TopRated(ctx context.Context, limit int) ([]Restaurant, error) {
	if limit <= 0 || limit > len(m.restaurants) {
		limit = len(m.restaurants)
	}
	return append([]Restaurant(nil), m.restaurants[:limit]...), nil
}

func matches(r Restaurant, f SearchFilter) bool {
	if !containsFold(r.Cuisine, f.Cuisine) {
		return false
	}
	if !containsFold(r.Location, f.Location) {
		return false
	}
	if !containsFold(r.PriceRange, f.PriceRange) {
		return false
	}
	if f.Seating != "" {
		found := false
		for _, s := range r.Seating {
			if containsFold(s, f.Seating) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	if strings.TrimSpace(needle) == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}

// MemoryBook is an in-process ReservationBook with the same business rules
// as the Postgres one.
type MemoryBook struct {
	mu           sync.Mutex
	nextID       int64
	reservations []Reservation
	capacityFor  func(restaurantID int64) (int, bool)
}

type MemoryBookOption func(*MemoryBook)

// WithCapacityLookup wires the capacity check; without it every party size
// is accepted.
func WithCapacityLookup(lookup func(restaurantID int64) (int, bool)) MemoryBookOption {
	return func(b *MemoryBook) {
		b.capacityFor = lookup
	}
}

func NewMemoryBook(opts ...MemoryBookOption) *MemoryBook {
	b := &MemoryBook{nextID: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *MemoryBook) Create(ctx context.Context, r Reservation) (Reservation, error) {
	if r.PartySize <= 0 {
		return Reservation{}, fmt.Errorf("%w: party size must be positive", ErrRejected)
	}
	if b.capacityFor != nil && r.RestaurantID != 0 {
		capacity, ok := b.capacityFor(r.RestaurantID)
		if !ok {
			return Reservation{}, fmt.Errorf("%w: unknown restaurant id=%d", ErrRejected, r.RestaurantID)
		}
		if r.PartySize > capacity {
			return Reservation{}, fmt.Errorf("%w: party of %d exceeds capacity %d", ErrRejected, r.PartySize, capacity)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	r.ID = b.nextID
	b.nextID++
	if r.Status == "" {
		r.Status = "confirmed"
	}
	b.reservations = append(b.reservations, r)
	return r, nil
}

// Reservations returns a copy of everything booked so far.
func (b *MemoryBook) Reservations() []Reservation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Reservation(nil), b.reservations...)
}
