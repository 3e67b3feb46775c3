package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/AnshRaj112/tasknest-backend/internal/models"
	"github.com/AnshRaj112/tasknest-backend/internal/services"
	"github.com/AnshRaj112/tasknest-backend/internal/webutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenCookieName is the cookie carrying the session token.
const TokenCookieName = "token"

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	User   *models.User
	Claims *services.Claims
}

type TokenValidator interface {
	Validate(token string) (*services.Claims, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type UserLoader interface {
	FindByID(ctx context.Context, id primitive.ObjectID, withPassword bool) (*models.User, error)
}

// GetPrincipal returns the principal RequireAuth stored on ctx.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.User != nil
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// RequireAuth resolves the token cookie to a user and rejects the request
// with 401 when any step fails, including when the user no longer exists.
// revoked may be nil.
func RequireAuth(tokens TokenValidator, revoked RevocationChecker, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := authenticate(r, tokens, revoked, users)
			if err != nil {
				webutil.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func authenticate(r *http.Request, tokens TokenValidator, revoked RevocationChecker, users UserLoader) (Principal, error) {
	cookie, err := r.Cookie(TokenCookieName)
	if err != nil || cookie.Value == "" {
		return Principal{}, services.ErrUnauthenticated
	}

	claims, err := tokens.Validate(cookie.Value)
	if err != nil {
		return Principal{}, err
	}

	if revoked != nil {
		isRevoked, err := revoked.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			return Principal{}, webutil.ErrInternalServerWrap("check token revocation", err)
		}
		if isRevoked {
			return Principal{}, services.ErrUnauthenticated
		}
	}

	userID, err := claims.UserID()
	if err != nil {
		return Principal{}, services.ErrInvalidToken
	}

	user, err := users.FindByID(r.Context(), userID, false)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return Principal{}, services.ErrUnauthenticated
		}
		return Principal{}, err
	}

	return Principal{User: user, Claims: claims}, nil
}
