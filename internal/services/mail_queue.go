package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/AnshRaj112/tasknest-backend/internal/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// MailOutboxKey is a list of jobs ready to send.
	MailOutboxKey = "mail:outbox"
	// MailRetryKey is a sorted set of failed jobs scored by next attempt (unix ms).
	MailRetryKey = "mail:retry"
	// MailDeadKey is a list of jobs that ran out of attempts.
	MailDeadKey = "mail:dead"
	// MailProcessingKey holds jobs taken off the outbox until they are settled.
	MailProcessingKey = "mail:processing"

	mailBaseBackoff = 5 * time.Second
	mailMaxBackoff  = 10 * time.Minute
)

type mailJob struct {
	ID        string `json:"id"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

// MailQueue is a MailSender that hands messages to a Redis outbox. Run drains
// the outbox through the wrapped sender, retrying failures with exponential
// backoff and parking a job in the dead list after maxAttempts. A job is
// always in exactly one of outbox, processing, retry or dead, so delivery is
// at least once.
type MailQueue struct {
	rdb          redis.Cmdable
	sender       MailSender
	maxAttempts  int
	pollInterval time.Duration
	now          func() time.Time
}

func NewMailQueue(rdb redis.Cmdable, sender MailSender, maxAttempts int) *MailQueue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &MailQueue{
		rdb:          rdb,
		sender:       sender,
		maxAttempts:  maxAttempts,
		pollInterval: time.Second,
		now:          time.Now,
	}
}

// SendMail enqueues the message. It returns once the job is stored, not
// when it is delivered.
func (q *MailQueue) SendMail(ctx context.Context, to, subject, body string) error {
	job := mailJob{ID: uuid.NewString(), To: to, Subject: subject, Body: body}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, MailOutboxKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	metrics.MailEvents.WithLabelValues("queued").Inc()
	return nil
}

// Run processes the outbox until ctx is cancelled. Jobs a previous worker
// left in the processing list are requeued first.
func (q *MailQueue) Run(ctx context.Context) {
	if err := q.requeueInFlight(ctx); err != nil && ctx.Err() == nil {
		slog.Error("mail queue: requeue in-flight jobs failed", "error", err)
	}

	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		q.drain(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (q *MailQueue) drain(ctx context.Context) {
	if err := q.promoteDue(ctx); err != nil && ctx.Err() == nil {
		slog.Error("mail queue: promote retries failed", "error", err)
	}
	for ctx.Err() == nil {
		processed, err := q.processNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("mail queue: process failed", "error", err)
			}
			return
		}
		if !processed {
			return
		}
	}
}

// promoteScript moves one member from the retry set to the outbox atomically,
// and only if this caller removed it.
var promoteScript = redis.NewScript(`
if redis.call("ZREM", KEYS[1], ARGV[1]) == 1 then
	return redis.call("LPUSH", KEYS[2], ARGV[1])
end
return 0
`)

// promoteDue moves retry jobs whose time has come back onto the outbox.
func (q *MailQueue) promoteDue(ctx context.Context) error {
	due, err := q.rdb.ZRangeByScore(ctx, MailRetryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return err
	}
	for _, member := range due {
		if err := promoteScript.Run(ctx, q.rdb, []string{MailRetryKey, MailOutboxKey}, member).Err(); err != nil {
			return err
		}
	}
	return nil
}

// requeueInFlight puts every job in the processing list back at the head of
// the outbox. Such a job may already have been sent once.
func (q *MailQueue) requeueInFlight(ctx context.Context) error {
	for {
		err := q.rdb.LMove(ctx, MailProcessingKey, MailOutboxKey, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// processNext sends the oldest outbox job. It reports false when the outbox is empty.
func (q *MailQueue) processNext(ctx context.Context) (bool, error) {
	payload, err := q.rdb.LMove(ctx, MailOutboxKey, MailProcessingKey, "RIGHT", "LEFT").Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// settling must complete even if ctx is cancelled mid-send
	settleCtx := context.WithoutCancel(ctx)

	var job mailJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		slog.Error("mail queue: dropping malformed job", "error", err)
		return true, q.settle(settleCtx, payload, func(pipe redis.Pipeliner) {
			pipe.LPush(settleCtx, MailDeadKey, payload)
		})
	}

	sendErr := q.sender.SendMail(ctx, job.To, job.Subject, job.Body)
	if sendErr == nil {
		metrics.MailEvents.WithLabelValues("sent").Inc()
		return true, q.settle(settleCtx, payload, nil)
	}

	if ctx.Err() != nil {
		// interrupted, not failed: back to the head of the outbox unchanged
		if err := q.settle(settleCtx, payload, func(pipe redis.Pipeliner) {
			pipe.RPush(settleCtx, MailOutboxKey, payload)
		}); err != nil {
			return false, err
		}
		return false, ctx.Err()
	}

	job.Attempts++
	job.LastError = sendErr.Error()
	next, err := json.Marshal(job)
	if err != nil {
		return true, err
	}

	if job.Attempts >= q.maxAttempts {
		metrics.MailEvents.WithLabelValues("dead").Inc()
		slog.Error("mail queue: giving up on message",
			"id", job.ID, "to", job.To, "attempts", job.Attempts, "error", sendErr)
		return true, q.settle(settleCtx, payload, func(pipe redis.Pipeliner) {
			pipe.LPush(settleCtx, MailDeadKey, next)
		})
	}

	retryAt := q.now().Add(backoff(job.Attempts))
	metrics.MailEvents.WithLabelValues("retried").Inc()
	slog.Warn("mail queue: send failed, will retry",
		"id", job.ID, "to", job.To, "attempts", job.Attempts, "retry_at", retryAt, "error", sendErr)
	return true, q.settle(settleCtx, payload, func(pipe redis.Pipeliner) {
		pipe.ZAdd(settleCtx, MailRetryKey, redis.Z{
			Score:  float64(retryAt.UnixMilli()),
			Member: string(next),
		})
	})
}

// settle drops payload from the processing list and applies then in the same
// MULTI/EXEC, so the job never sits in two places or none.
func (q *MailQueue) settle(ctx context.Context, payload string, then func(redis.Pipeliner)) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, MailProcessingKey, 1, payload)
		if then != nil {
			then(pipe)
		}
		return nil
	})
	return err
}

func backoff(attempts int) time.Duration {
	d := mailBaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= mailMaxBackoff {
			return mailMaxBackoff
		}
	}
	return d
}
