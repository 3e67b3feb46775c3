package services

import (
	"context"
	"testing"
	"time"

	"github.com/AnshRaj112/tasknest-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartOTPCleanup_ClearsExpiredCodesWithoutRequests(t *testing.T) {
	store := newMemUserStore()
	past := time.Now().UTC().Add(-time.Second)
	future := time.Now().UTC().Add(time.Hour)
	code := 123456

	expired := &models.User{Email: "a@x.com", OTP: &code, OTPExpiry: &past}
	pending := &models.User{Email: "b@x.com", ResetPasswordOTP: &code, ResetPasswordOTPExpiry: &future}
	require.NoError(t, store.Create(context.Background(), expired))
	require.NoError(t, store.Create(context.Background(), pending))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartOTPCleanup(ctx, store, 10*time.Millisecond)

	require.Eventually(t, func() bool { return store.calls() >= 2 }, 2*time.Second, 5*time.Millisecond)

	assert.Nil(t, store.stored(expired.ID).OTP)
	assert.Nil(t, store.stored(expired.ID).OTPExpiry)
	assert.NotNil(t, store.stored(pending.ID).ResetPasswordOTP)

	cancel()
	time.Sleep(30 * time.Millisecond)
	calls := store.calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, store.calls(), "sweeper stops with its context")
}
