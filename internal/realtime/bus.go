package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

// JobEvent mirrors what a polling client would see on GET /jobs/:id, pushed
// over pub/sub for consumers that prefer subscribing. Delivery is
// best-effort; polling remains the source of truth.
type JobEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	SubmissionID uuid.UUID `json:"submission_id"`
	Revision     int       `json:"revision"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	ErrorKind    string    `json:"error_kind,omitempty"`
}

type Bus interface {
	PublishJob(ctx context.Context, ev JobEvent) error
	Close() error
}

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisBus(addr, channel string, baseLog *logger.Logger) (Bus, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if channel == "" {
		channel = "integrity.jobs"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log:     baseLog.With("component", "RedisJobBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *redisBus) PublishJob(ctx context.Context, ev JobEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) Close() error { return b.rdb.Close() }

// NopBus stands in when redis is not configured.
type NopBus struct{}

func (NopBus) PublishJob(context.Context, JobEvent) error { return nil }
func (NopBus) Close() error                               { return nil }
