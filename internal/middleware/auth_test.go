package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AnshRaj112/tasknest-backend/internal/models"
	"github.com/AnshRaj112/tasknest-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeUsers struct {
	users map[primitive.ObjectID]*models.User
	err   error
}

func (f *fakeUsers) FindByID(ctx context.Context, id primitive.ObjectID, withPassword bool) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, services.ErrUserNotFound
	}
	return u, nil
}

type fakeRevoked struct {
	jtis map[string]bool
	err  error
}

func (f *fakeRevoked) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return f.jtis[jti], f.err
}

func authFixture(t *testing.T) (*services.TokenService, *fakeUsers, *models.User) {
	t.Helper()
	tokens := services.NewTokenService("test-secret", time.Hour)
	u := &models.User{ID: primitive.NewObjectID(), Name: "Al", Email: "al@x.com"}
	return tokens, &fakeUsers{users: map[primitive.ObjectID]*models.User{u.ID: u}}, u
}

func serveAuth(t *testing.T, mw func(http.Handler) http.Handler, token string) (*httptest.ResponseRecorder, *Principal) {
	t.Helper()
	var seen *Principal
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		require.True(t, ok)
		seen = &p
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Message
}

func TestRequireAuth_Success(t *testing.T) {
	tokens, users, u := authFixture(t)
	tok, _, err := tokens.Issue(u.ID)
	require.NoError(t, err)

	rec, p := serveAuth(t, RequireAuth(tokens, &fakeRevoked{}, users), tok)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, p)
	assert.Equal(t, u, p.User)
	assert.Equal(t, u.ID.Hex(), p.Claims.Subject)
}

func TestRequireAuth_MissingCookie(t *testing.T) {
	tokens, users, _ := authFixture(t)

	rec, p := serveAuth(t, RequireAuth(tokens, nil, users), "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, p)
	assert.Equal(t, "Please login to access this page", messageOf(t, rec))
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	tokens, users, _ := authFixture(t)

	rec, p := serveAuth(t, RequireAuth(tokens, nil, users), "garbage")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, p)
	assert.Equal(t, services.ErrInvalidToken.Message, messageOf(t, rec))
}

func TestRequireAuth_FailsClosedForDeletedUser(t *testing.T) {
	tokens, users, _ := authFixture(t)
	tok, _, err := tokens.Issue(primitive.NewObjectID())
	require.NoError(t, err)

	rec, p := serveAuth(t, RequireAuth(tokens, nil, users), tok)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, p)
	assert.Equal(t, services.ErrUnauthenticated.Message, messageOf(t, rec))
}

func TestRequireAuth_RevokedToken(t *testing.T) {
	tokens, users, u := authFixture(t)
	tok, _, err := tokens.Issue(u.ID)
	require.NoError(t, err)
	claims, err := tokens.Validate(tok)
	require.NoError(t, err)

	rec, _ := serveAuth(t, RequireAuth(tokens, &fakeRevoked{jtis: map[string]bool{claims.ID: true}}, users), tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serveAuth(t, RequireAuth(tokens, &fakeRevoked{err: errors.New("redis down")}, users), tok)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", messageOf(t, rec))
}

func TestRequireAuth_StoreError(t *testing.T) {
	tokens, users, u := authFixture(t)
	tok, _, err := tokens.Issue(u.ID)
	require.NoError(t, err)
	users.err = errors.New("mongo down")

	rec, _ := serveAuth(t, RequireAuth(tokens, nil, users), tok)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetPrincipal_Absent(t *testing.T) {
	_, ok := GetPrincipal(context.Background())
	assert.False(t, ok)

	_, ok = GetPrincipal(WithPrincipal(context.Background(), Principal{}))
	assert.False(t, ok, "a principal without a user is not authenticated")
}
