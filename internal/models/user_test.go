package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPendingOTP_SlotsAreIndependent(t *testing.T) {
	u := &User{}
	code, exp := 123456, time.Now().Add(time.Minute)

	u.SetPendingOTP(OTPVerification, &code, &exp)

	gotCode, gotExp := u.PendingOTP(OTPVerification)
	require.NotNil(t, gotCode)
	assert.Equal(t, 123456, *gotCode)
	assert.Equal(t, exp, *gotExp)

	resetCode, resetExp := u.PendingOTP(OTPPasswordReset)
	assert.Nil(t, resetCode)
	assert.Nil(t, resetExp)

	u.SetPendingOTP(OTPVerification, nil, nil)
	gotCode, gotExp = u.PendingOTP(OTPVerification)
	assert.Nil(t, gotCode)
	assert.Nil(t, gotExp)
}

func TestFindTask(t *testing.T) {
	a, b := primitive.NewObjectID(), primitive.NewObjectID()
	u := &User{Tasks: []Task{{ID: a}, {ID: b}}}

	assert.Equal(t, 1, u.FindTask(b))
	assert.Equal(t, -1, u.FindTask(primitive.NewObjectID()))
}

func TestPublicExcludesSecrets(t *testing.T) {
	code := 42
	u := &User{
		Name:             "Al",
		Email:            "al@x.com",
		PasswordHash:     "$argon2id$secret",
		OTP:              &code,
		ResetPasswordOTP: &code,
	}

	raw, err := json.Marshal(u.Public())
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.ElementsMatch(t, []string{"name", "email", "avatar", "tasks", "verified"}, keys(body))
	assert.NotContains(t, string(raw), "argon2id")
	assert.Equal(t, []any{}, body["tasks"])

	raw, err = json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), "otp")
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
