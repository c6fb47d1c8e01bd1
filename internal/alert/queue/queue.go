package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrJamesThe3rd/karat/internal/alert"
)

const (
	// ReminderList holds pending reminders for the delivery worker.
	ReminderList = "karat:reminders"
	// ReminderChannel announces new reminders to live subscribers.
	ReminderChannel = "karat:reminders:new"
)

// Redis enqueues reminders for an external delivery worker. Delivery itself
// (push, WhatsApp) happens outside the ledger.
type Redis struct {
	rdb redis.Cmdable
}

func NewRedis(rdb redis.Cmdable) *Redis {
	return &Redis{rdb: rdb}
}

type reminder struct {
	NotificationID string    `json:"notification_id"`
	StoreID        string    `json:"store_id"`
	ReserveType    string    `json:"reserve_type"`
	Message        string    `json:"message"`
	Link           string    `json:"link"`
	CreatedAt      time.Time `json:"created_at"`
}

func encode(n *alert.Notification) ([]byte, error) {
	payload, err := json.Marshal(reminder{
		NotificationID: n.ID.String(),
		StoreID:        n.StoreID,
		ReserveType:    string(n.ReserveType),
		Message:        n.Message,
		Link:           n.Link,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling reminder: %w", err)
	}

	return payload, nil
}

func (r *Redis) Enqueue(ctx context.Context, n *alert.Notification) error {
	payload, err := encode(n)
	if err != nil {
		return err
	}

	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, ReminderList, payload)
	pipe.Publish(ctx, ReminderChannel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueueing reminder: %w", err)
	}

	return nil
}
