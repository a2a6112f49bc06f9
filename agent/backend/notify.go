package backend

import (
	"context"
	"errors"
	"strings"

	qstashx "github.com/alfredlabs/alfred/pkg/qstash"
)

// QStashNotifier publishes reservation confirmations through QStash for
// downstream delivery (email, SMS, webhooks).
type QStashNotifier struct {
	client      *qstashx.Client
	destination string
}

var _ Notifier = (*QStashNotifier)(nil)

func NewQStashNotifier(client *qstashx.Client, destination string) (*QStashNotifier, error) {
	if client == nil {
		return nil, errors.New("qstash client is required")
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, errors.New("qstash destination is required")
	}
	return &QStashNotifier{client: client, destination: destination}, nil
}

func (n *QStashNotifier) NotifyReservation(ctx context.Context, r Reservation) error {
	return n.client.Publish(ctx, n.destination, map[string]any{
		"event":          "reservation.confirmed",
		"reservation_id": r.ID,
		"restaurant_id":  r.RestaurantID,
		"guest_name":     r.GuestName,
		"at":             r.At,
		"party_size":     r.PartySize,
	})
}
