package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
	"github.com/prperemyshlev/datahub-healthcheck/pkg/database"
	"github.com/redis/go-redis/v9"
)

const latestRunKey = "healthcheck:run:latest"

// ErrNoReport is returned when no run has been stored yet
var ErrNoReport = errors.New("no report available")

// ReportCache keeps the latest completed run in Redis
type ReportCache struct {
	redis *database.Redis
	ttl   time.Duration
}

// NewReportCache creates a new report cache
func NewReportCache(redis *database.Redis, ttl time.Duration) *ReportCache {
	return &ReportCache{redis: redis, ttl: ttl}
}

// Save stores run as the latest run
func (s *ReportCache) Save(ctx context.Context, run *domain.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}

	if err := s.redis.Client.Set(ctx, latestRunKey, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache run: %w", err)
	}
	return nil
}

// Latest returns the cached run, or ErrNoReport
func (s *ReportCache) Latest(ctx context.Context) (*domain.Run, error) {
	data, err := s.redis.Client.Get(ctx, latestRunKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached run: %w", err)
	}

	run := &domain.Run{Report: domain.NewReport()}
	if err := json.Unmarshal(data, run); err != nil {
		return nil, fmt.Errorf("failed to decode cached run: %w", err)
	}
	return run, nil
}
