package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/lshigami/intervue/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Handler processes one job attempt. A returned error schedules a retry.
type Handler func(ctx context.Context, job Job) error

// ExhaustedHandler runs once when a job fails its final attempt.
type ExhaustedHandler func(ctx context.Context, job Job, err error)

type Queue interface {
	Enqueue(ctx context.Context, queue string, payload interface{}, opts EnqueueOptions) (string, error)
}

type Config struct {
	Concurrency  int
	PollInterval time.Duration
}

type registration struct {
	handler     Handler
	onExhausted ExhaustedHandler
}

// RedisQueue is an at-least-once job queue over Redis lists. Each queue uses a
// ready list, a processing list, a delayed sorted set and a dead list.
type RedisQueue struct {
	client   *redis.Client
	cfg      Config
	metrics  *metrics.Metrics
	mu       sync.Mutex
	handlers map[string]registration
	cancel   context.CancelFunc
	group    *errgroup.Group
}

var promoteScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 100)
for _, job in ipairs(due) do
	redis.call("ZREM", KEYS[1], job)
	redis.call("RPUSH", KEYS[2], job)
end
return #due
`)

func NewRedisQueue(client *redis.Client, cfg Config, m *metrics.Metrics) *RedisQueue {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &RedisQueue{
		client:   client,
		cfg:      cfg,
		metrics:  m,
		handlers: make(map[string]registration),
	}
}

func readyKey(queue string) string      { return "queue:" + queue + ":ready" }
func processingKey(queue string) string { return "queue:" + queue + ":processing" }
func delayedKey(queue string) string    { return "queue:" + queue + ":delayed" }
func deadKey(queue string) string       { return "queue:" + queue + ":dead" }

func (q *RedisQueue) Enqueue(ctx context.Context, queue string, payload interface{}, opts EnqueueOptions) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s job payload: %w", queue, err)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	job := Job{
		ID:          uuid.NewString(),
		Queue:       queue,
		Payload:     raw,
		MaxAttempts: opts.MaxAttempts,
		BackoffMs:   opts.Backoff.Milliseconds(),
		EnqueuedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s job: %w", queue, err)
	}
	if err := q.client.RPush(ctx, readyKey(queue), data).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue %s job: %w", queue, err)
	}
	log.Debug().Str("queue", queue).Str("jobID", job.ID).Msg("Job enqueued")
	return job.ID, nil
}

// Register binds the handler for a queue. It must be called before Start.
func (q *RedisQueue) Register(queue string, handler Handler, onExhausted ExhaustedHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[queue] = registration{handler: handler, onExhausted: onExhausted}
}

// Start requeues jobs left in processing by a previous run and launches the
// workers and delayed-job promoters.
func (q *RedisQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return errors.New("queue already started")
	}

	for name := range q.handlers {
		if err := q.requeueInFlight(ctx, name); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	g, gctx := errgroup.WithContext(runCtx)
	q.group = g

	for name, reg := range q.handlers {
		name, reg := name, reg
		g.Go(func() error { return q.promote(gctx, name) })
		for i := 0; i < q.cfg.Concurrency; i++ {
			g.Go(func() error { return q.work(gctx, name, reg) })
		}
		log.Info().Str("queue", name).Int("workers", q.cfg.Concurrency).Msg("Queue workers started")
	}
	return nil
}

// Stop cancels the workers and waits for in-flight jobs to return.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	cancel, group := q.cancel, q.group
	q.cancel, q.group = nil, nil
	q.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *RedisQueue) requeueInFlight(ctx context.Context, name string) error {
	for {
		err := q.client.LMove(ctx, processingKey(name), readyKey(name), "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to requeue %s jobs: %w", name, err)
		}
	}
}

func (q *RedisQueue) promote(ctx context.Context, name string) error {
	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := strconv.FormatInt(time.Now().UnixMilli(), 10)
			if err := promoteScript.Run(ctx, q.client, []string{delayedKey(name), readyKey(name)}, now).Err(); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Str("queue", name).Msg("Failed to promote delayed jobs")
			}
		}
	}
}

func (q *RedisQueue) work(ctx context.Context, name string, reg registration) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		data, err := q.client.BLMove(ctx, readyKey(name), processingKey(name), "LEFT", "RIGHT", q.cfg.PollInterval).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("queue", name).Msg("Failed to pop job")
			sleep(ctx, q.cfg.PollInterval)
			continue
		}
		q.process(ctx, name, reg, data)
	}
}

func (q *RedisQueue) process(ctx context.Context, name string, reg registration, data string) {
	defer q.client.LRem(context.Background(), processingKey(name), 1, data)

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		log.Error().Err(err).Str("queue", name).Msg("Dropping undecodable job")
		q.client.RPush(context.Background(), deadKey(name), data)
		return
	}
	job.Attempt++

	start := time.Now()
	err := runHandler(ctx, reg.handler, job)
	status := "ok"
	if err != nil {
		status = "error"
	}
	q.metrics.JobDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
	if err == nil {
		log.Debug().Str("queue", name).Str("jobID", job.ID).Int("attempt", job.Attempt).Msg("Job completed")
		return
	}

	job.LastError = err.Error()
	encoded, _ := json.Marshal(job)

	if job.Attempt < job.MaxAttempts {
		delay := retryDelay(time.Duration(job.BackoffMs)*time.Millisecond, job.Attempt)
		at := float64(time.Now().Add(delay).UnixMilli())
		if zerr := q.client.ZAdd(context.Background(), delayedKey(name), redis.Z{Score: at, Member: encoded}).Err(); zerr != nil {
			log.Error().Err(zerr).Str("queue", name).Str("jobID", job.ID).Msg("Failed to schedule job retry")
		}
		q.metrics.JobRetries.WithLabelValues(name).Inc()
		log.Warn().Err(err).Str("queue", name).Str("jobID", job.ID).Int("attempt", job.Attempt).Dur("retryIn", delay).Msg("Job failed, retrying")
		return
	}

	q.client.RPush(context.Background(), deadKey(name), encoded)
	q.metrics.JobsDeadLettered.WithLabelValues(name).Inc()
	log.Error().Err(err).Str("queue", name).Str("jobID", job.ID).Int("attempts", job.Attempt).Msg("Job exhausted its attempts")
	if reg.onExhausted != nil {
		reg.onExhausted(context.Background(), job, err)
	}
}

func runHandler(ctx context.Context, h Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return h(ctx, job)
}

// retryDelay is base * 2^(attempt-1).
func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = base << 10
	b.MaxElapsedTime = 0
	b.Reset()
	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
