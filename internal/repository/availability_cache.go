package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/talktera/talktera-scheduling-service/internal/domain"
)

// AvailabilityCache keeps computed availability windows so repeated slot
// searches don't replay the date walk against the store. A cache failure is
// never surfaced to the caller; the service just recomputes.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewAvailabilityCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *AvailabilityCache {
	return &AvailabilityCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func availabilityKey(therapistId string, window string) string {
	return fmt.Sprintf("availability:%s:%s", therapistId, window)
}

func (c *AvailabilityCache) Get(ctx context.Context, therapistId, window string) ([]domain.MonthAvailability, bool) {
	raw, err := c.client.Get(ctx, availabilityKey(therapistId, window)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).Warn("Availability cache read failed, recomputing")
		return nil, false
	}
	var months []domain.MonthAvailability
	if err := json.Unmarshal(raw, &months); err != nil {
		c.logger.WithError(err).Warn("Availability cache entry corrupt, recomputing")
		return nil, false
	}
	return months, true
}

func (c *AvailabilityCache) Set(ctx context.Context, therapistId, window string, months []domain.MonthAvailability) {
	raw, err := json.Marshal(months)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal availability for cache")
		return
	}
	if err := c.client.Set(ctx, availabilityKey(therapistId, window), raw, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Availability cache write failed")
	}
}

// Invalidate drops every cached window of the therapist. Called after any
// booking, recurrence or schedule mutation that can change availability.
func (c *AvailabilityCache) Invalidate(ctx context.Context, therapistId string) {
	iter := c.client.Scan(ctx, 0, availabilityKey(therapistId, "*"), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.WithError(err).Warn("Availability cache invalidation failed")
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.WithError(err).Warn("Availability cache scan failed")
	}
}
