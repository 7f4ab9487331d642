package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisQueueConfig struct {
	Stream     string
	Group      string
	Consumer   string
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
}

// RedisQueue carries removal tasks through a Redis stream so they survive a
// restart. Failed removals are re-added with an incremented attempt count
// until MaxRetries is reached, then abandoned.
type RedisQueue struct {
	client       *redis.Client
	remover      Remover
	reporter     reporter
	stream       string
	group        string
	consumerBase string
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64

	groupOnce sync.Once
	groupErr  error
	running   sync.WaitGroup
	fallback  sync.WaitGroup
}

func NewRedisQueue(client *redis.Client, remover Remover, logger *slog.Logger, cfg RedisQueueConfig) (*RedisQueue, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "catalog:asset-cleanup"
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "asset-cleanup"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = uuid.NewString()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 10
	}

	return &RedisQueue{
		client:       client,
		remover:      remover,
		reporter:     newReporter(logger),
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		maxRetries:   maxRetries,
		block:        block,
		claimIdle:    claimIdle,
		retryDelay:   retryDelay,
		maxLen:       maxLen,
		readCount:    readCount,
	}, nil
}

// Schedule adds a removal task to the stream. When Redis is unreachable the
// removal is attempted once in-process so the asset is not silently kept.
func (q *RedisQueue) Schedule(ctx context.Context, ref, reason string) {
	if ref == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)

	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"ref":     ref,
			"reason":  reason,
			"attempt": "0",
		},
	}).Err()
	if err == nil {
		return
	}

	q.reporter.logger.WarnContext(ctx, "cleanup enqueue failed, removing inline",
		slog.String("asset_ref", ref),
		slog.Any("error", err),
	)

	q.fallback.Add(1)
	go func() {
		defer q.fallback.Done()
		removeErr := q.remover.Remove(ctx, ref)
		q.reporter.report(ctx, Result{Ref: ref, Reason: reason, Attempt: 1, Err: removeErr}, true)
	}()
}

// Start launches the consumers. They stop when ctx is cancelled.
func (q *RedisQueue) Start(ctx context.Context, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		q.running.Add(1)
		go func() {
			defer q.running.Done()
			q.consumeLoop(ctx, consumer)
		}()
	}
	return nil
}

// Wait blocks until the consumers started by Start have returned.
func (q *RedisQueue) Wait() {
	q.running.Wait()
	q.fallback.Wait()
}

func (q *RedisQueue) ensureGroup(ctx context.Context) error {
	q.groupOnce.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			q.groupErr = fmt.Errorf("create consumer group: %w", err)
		}
	})
	return q.groupErr
}

func (q *RedisQueue) consumeLoop(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, err := q.processBatch(ctx, consumer, q.block); err != nil && ctx.Err() == nil {
			q.reporter.logger.WarnContext(ctx, "cleanup queue read failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// processBatch reclaims stale pending entries, then reads new ones. A
// negative block returns immediately when the stream is empty.
func (q *RedisQueue) processBatch(ctx context.Context, consumer string, block time.Duration) (int, error) {
	handled := 0

	if msgs, err := q.claimPending(ctx, consumer); err == nil {
		for _, msg := range msgs {
			q.handleMessage(ctx, msg)
			handled++
		}
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    q.readCount,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return handled, nil
		}
		return handled, err
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			q.handleMessage(ctx, msg)
			handled++
		}
	}
	return handled, nil
}

func (q *RedisQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.readCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisQueue) handleMessage(ctx context.Context, msg redis.XMessage) {
	ref, _ := msg.Values["ref"].(string)
	reason, _ := msg.Values["reason"].(string)
	attemptStr, _ := msg.Values["attempt"].(string)
	if ref == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}

	attempt, _ := strconv.Atoi(attemptStr)
	attempt++

	err := q.remover.Remove(ctx, ref)
	res := Result{Ref: ref, Reason: reason, Attempt: attempt, Err: err}

	if err == nil || attempt >= q.maxRetries {
		q.reporter.report(ctx, res, true)
		q.ackAndDel(ctx, msg.ID)
		return
	}

	q.reporter.report(ctx, res, false)
	if q.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.retryDelay):
		}
	}
	if err := q.requeueAndAck(ctx, msg.ID, ref, reason, attempt); err != nil {
		q.reporter.logger.WarnContext(ctx, "cleanup requeue failed",
			slog.String("asset_ref", ref),
			slog.Any("error", err),
		)
	}
}

func (q *RedisQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *RedisQueue) requeueAndAck(ctx context.Context, msgID, ref, reason string, attempt int) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"ref":     ref,
			"reason":  reason,
			"attempt": strconv.Itoa(attempt),
		},
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}
