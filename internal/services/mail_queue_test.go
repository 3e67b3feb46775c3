package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailQueue_DeliversQueuedMail(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestRedis(t)
	sender := &fakeMailer{}
	q := NewMailQueue(rdb, sender, 3)

	require.NoError(t, q.SendMail(ctx, "al@x.com", "Verify Your Account", "Your OTP is 000042"))
	assert.Empty(t, sender.messages(), "enqueue does not send")

	processed, err := q.processNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	require.Len(t, sender.messages(), 1)
	assert.Equal(t, sentMail{To: "al@x.com", Subject: "Verify Your Account", Body: "Your OTP is 000042"}, sender.messages()[0])
	assert.False(t, mr.Exists(MailOutboxKey))
	assert.False(t, mr.Exists(MailProcessingKey))

	processed, err = q.processNext(ctx)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestMailQueue_RetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	clock := newFixedClock()
	sender := &fakeMailer{fail: 1}
	q := NewMailQueue(rdb, sender, 3)
	q.now = clock.Now

	require.NoError(t, q.SendMail(ctx, "al@x.com", "s", "b"))

	_, err := q.processNext(ctx)
	require.NoError(t, err)
	assert.Empty(t, sender.messages())

	scheduled, err := rdb.ZRangeWithScores(ctx, MailRetryKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, float64(clock.Now().Add(mailBaseBackoff).UnixMilli()), scheduled[0].Score)

	var job mailJob
	require.NoError(t, json.Unmarshal([]byte(scheduled[0].Member.(string)), &job))
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, errSMTPDown.Error(), job.LastError)

	require.NoError(t, q.promoteDue(ctx))
	assert.Equal(t, int64(0), rdb.LLen(ctx, MailOutboxKey).Val(), "not due yet")

	clock.Advance(mailBaseBackoff)
	require.NoError(t, q.promoteDue(ctx))
	assert.Equal(t, int64(1), rdb.LLen(ctx, MailOutboxKey).Val())
	assert.Equal(t, int64(0), rdb.ZCard(ctx, MailRetryKey).Val())

	_, err = q.processNext(ctx)
	require.NoError(t, err)
	assert.Len(t, sender.messages(), 1)
}

func TestMailQueue_DeadLettersAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	clock := newFixedClock()
	sender := &fakeMailer{fail: 10}
	q := NewMailQueue(rdb, sender, 2)
	q.now = clock.Now

	require.NoError(t, q.SendMail(ctx, "al@x.com", "s", "b"))

	_, err := q.processNext(ctx)
	require.NoError(t, err)
	clock.Advance(time.Hour)
	require.NoError(t, q.promoteDue(ctx))
	_, err = q.processNext(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(0), rdb.ZCard(ctx, MailRetryKey).Val())
	dead, err := rdb.LRange(ctx, MailDeadKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, dead, 1)

	var job mailJob
	require.NoError(t, json.Unmarshal([]byte(dead[0]), &job))
	assert.Equal(t, 2, job.Attempts)
}

func TestMailQueue_MalformedJobIsParked(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	q := NewMailQueue(rdb, &fakeMailer{}, 3)

	require.NoError(t, rdb.LPush(ctx, MailOutboxKey, "{not json").Err())

	processed, err := q.processNext(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []string{"{not json"}, rdb.LRange(ctx, MailDeadKey, 0, -1).Val())
}

func TestMailQueue_RunDrainsUntilCancelled(t *testing.T) {
	_, rdb := newTestRedis(t)
	sender := &fakeMailer{}
	q := NewMailQueue(rdb, sender, 3)
	q.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	require.NoError(t, q.SendMail(context.Background(), "a@x.com", "s", "1"))
	require.NoError(t, q.SendMail(context.Background(), "b@x.com", "s", "2"))

	require.Eventually(t, func() bool { return len(sender.messages()) == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// cancellingMailer cancels the worker's context mid-send, as shutdown does.
type cancellingMailer struct {
	cancel context.CancelFunc
}

func (m *cancellingMailer) SendMail(ctx context.Context, to, subject, body string) error {
	m.cancel()
	return ctx.Err()
}

func TestMailQueue_CancelledSendIsRequeued(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewMailQueue(rdb, &cancellingMailer{cancel: cancel}, 3)

	bg := context.Background()
	require.NoError(t, q.SendMail(bg, "al@x.com", "s", "b"))
	queued := rdb.LRange(bg, MailOutboxKey, 0, -1).Val()

	processed, err := q.processNext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, processed)

	assert.Equal(t, queued, rdb.LRange(bg, MailOutboxKey, 0, -1).Val(), "job goes back unchanged")
	assert.Equal(t, int64(0), rdb.LLen(bg, MailProcessingKey).Val())
	assert.Equal(t, int64(0), rdb.ZCard(bg, MailRetryKey).Val())
	assert.Equal(t, int64(0), rdb.LLen(bg, MailDeadKey).Val())

	sender := &fakeMailer{}
	q = NewMailQueue(rdb, sender, 3)
	_, err = q.processNext(bg)
	require.NoError(t, err)
	assert.Len(t, sender.messages(), 1)
}

func TestMailQueue_RequeuesJobsLeftInFlight(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	sender := &fakeMailer{}
	q := NewMailQueue(rdb, sender, 3)

	// a worker that died between taking the jobs and settling them
	require.NoError(t, q.SendMail(ctx, "a@x.com", "s", "1"))
	require.NoError(t, q.SendMail(ctx, "b@x.com", "s", "2"))
	require.NoError(t, rdb.LMove(ctx, MailOutboxKey, MailProcessingKey, "RIGHT", "LEFT").Err())
	require.NoError(t, rdb.LMove(ctx, MailOutboxKey, MailProcessingKey, "RIGHT", "LEFT").Err())
	require.Equal(t, int64(0), rdb.LLen(ctx, MailOutboxKey).Val())

	require.NoError(t, q.requeueInFlight(ctx))
	assert.Equal(t, int64(0), rdb.LLen(ctx, MailProcessingKey).Val())
	assert.Equal(t, int64(2), rdb.LLen(ctx, MailOutboxKey).Val())

	for i := 0; i < 2; i++ {
		_, err := q.processNext(ctx)
		require.NoError(t, err)
	}
	msgs := sender.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "a@x.com", msgs[0].To, "original order is kept")
	assert.Equal(t, "b@x.com", msgs[1].To)
}

func TestMailQueue_PromoteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestRedis(t)
	clock := newFixedClock()
	q := NewMailQueue(rdb, &fakeMailer{}, 3)
	q.now = clock.Now

	require.NoError(t, rdb.ZAdd(ctx, MailRetryKey, redis.Z{Score: float64(clock.Now().UnixMilli()), Member: "job"}).Err())

	require.NoError(t, q.promoteDue(ctx))
	require.NoError(t, q.promoteDue(ctx))

	assert.Equal(t, []string{"job"}, rdb.LRange(ctx, MailOutboxKey, 0, -1).Val())
	assert.Equal(t, int64(0), rdb.ZCard(ctx, MailRetryKey).Val())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Second, backoff(1))
	assert.Equal(t, 10*time.Second, backoff(2))
	assert.Equal(t, 20*time.Second, backoff(3))
	assert.Equal(t, mailMaxBackoff, backoff(20))
}
