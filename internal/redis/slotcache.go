package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SlotCache memoizes free-slot listings per staff member and date. Entries
// carry a TTL as a backstop, but correctness comes from InvalidateSlots being
// called on every write that touches a (staff, date) timetable.
type SlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSlotCache(client *redis.Client, ttl time.Duration) *SlotCache {
	return &SlotCache{client: client, ttl: ttl}
}

func slotKey(staffID uuid.UUID, date time.Time, durationMin, stepMin int) string {
	return fmt.Sprintf("slots:%s:%s:%d:%d", staffID.String(), date.Format("2006-01-02"), durationMin, stepMin)
}

// Get returns the cached "HH:MM" start times and whether the entry existed.
func (c *SlotCache) Get(ctx context.Context, staffID uuid.UUID, date time.Time, durationMin, stepMin int) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, slotKey(staffID, date, durationMin, stepMin)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get slot cache: %w", err)
	}

	var slots []string
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		return nil, false, fmt.Errorf("decode slot cache entry: %w", err)
	}
	return slots, true, nil
}

func (c *SlotCache) Put(ctx context.Context, staffID uuid.UUID, date time.Time, durationMin, stepMin int, slots []string) error {
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode slot cache entry: %w", err)
	}
	if err := c.client.Set(ctx, slotKey(staffID, date, durationMin, stepMin), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("put slot cache: %w", err)
	}
	return nil
}

// InvalidateSlots drops every cached listing for the staff member and date,
// across all duration/step combinations.
func (c *SlotCache) InvalidateSlots(ctx context.Context, staffID uuid.UUID, date time.Time) error {
	pattern := fmt.Sprintf("slots:%s:%s:*", staffID.String(), date.Format("2006-01-02"))

	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan slot cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate slot cache: %w", err)
	}
	return nil
}
