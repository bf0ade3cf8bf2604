// Package cancelbus is a secondary, best-effort cancellation signal
// channel for job Handlers. Temporal's own CancelWorkflow is the
// primary broker-level cancellation path; this bus lets a Handler
// poll at Step/batch boundaries without round-tripping through
// Temporal's activity heartbeat machinery.
package cancelbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ckguru/orchestrator/internal/platform/logger"
)

// Signal is published once per cancellation request.
type Signal struct {
	JobID     int64     `json:"job_id"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

type Bus interface {
	// Cancel publishes a cancellation signal for jobID.
	Cancel(ctx context.Context, jobID int64, reason string) error
	// StartForwarder subscribes and invokes onSignal for every
	// cancellation published on the bus until ctx is canceled.
	StartForwarder(ctx context.Context, onSignal func(Signal)) error
	// IsCanceled reports whether jobID has been marked canceled by a
	// prior signal observed by this process. Handlers call this at
	// Step/batch boundaries instead of re-subscribing per job.
	IsCanceled(jobID int64) bool
	Close() error
}

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string

	mu       sync.RWMutex
	canceled map[int64]struct{}
}

// New connects to Redis using REDIS_ADDR/REDIS_CANCEL_CHANNEL (default
// channel "job_cancellations"). Returns an error if REDIS_ADDR is
// unset -- unlike Temporal's client, there is no "disabled" mode; a
// caller that does not construct a Bus runs without one.
func New(log *logger.Logger) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CANCEL_CHANNEL"))
	if ch == "" {
		ch = "job_cancellations"
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
		log:      log.With("service", "RedisCancelBus"),
		rdb:      rdb,
		channel:  ch,
		canceled: make(map[int64]struct{}),
	}, nil
}

func (b *redisBus) Cancel(ctx context.Context, jobID int64, reason string) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("cancel bus not initialized")
	}
	raw, err := json.Marshal(Signal{JobID: jobID, Reason: reason, At: time.Now()})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onSignal func(Signal)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("cancel bus not initialized")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var sig Signal
				if err := json.Unmarshal([]byte(m.Payload), &sig); err != nil {
					b.log.Warn("bad cancel-bus payload", "error", err)
					continue
				}
				b.mu.Lock()
				b.canceled[sig.JobID] = struct{}{}
				b.mu.Unlock()
				if onSignal != nil {
					onSignal(sig)
				}
			}
		}
	}()

	return nil
}

func (b *redisBus) IsCanceled(jobID int64) bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.canceled[jobID]
	return ok
}

func (b *redisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
