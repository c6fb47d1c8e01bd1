package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/karat/internal/alert"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

func TestEncode(t *testing.T) {
	n := &alert.Notification{
		ID:          uuid.MustParse("6f1c1f0e-7d7a-4a39-9c55-2f0f3f1e8a11"),
		StoreID:     "main-bazaar",
		ReserveType: reserve.TypeKamalSilver,
		Message:     "Low stock: KAMAL_SILVER at main-bazaar is 4, below 10",
		Link:        "/stores/main-bazaar/reserves/KAMAL_SILVER",
		CreatedAt:   time.Date(2026, time.March, 5, 10, 30, 0, 0, time.UTC),
	}

	payload, err := encode(n)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(payload, &got))

	assert.Equal(t, map[string]string{
		"notification_id": "6f1c1f0e-7d7a-4a39-9c55-2f0f3f1e8a11",
		"store_id":        "main-bazaar",
		"reserve_type":    "KAMAL_SILVER",
		"message":         "Low stock: KAMAL_SILVER at main-bazaar is 4, below 10",
		"link":            "/stores/main-bazaar/reserves/KAMAL_SILVER",
		"created_at":      "2026-03-05T10:30:00Z",
	}, got)
}

func TestRedis_EnqueueUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	err := NewRedis(rdb).Enqueue(context.Background(), &alert.Notification{ID: uuid.New(), StoreID: "main-bazaar"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueueing reminder")
}
