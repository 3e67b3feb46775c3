package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AnshRaj112/tasknest-backend/internal/middleware"
	"github.com/AnshRaj112/tasknest-backend/internal/models"
	"github.com/AnshRaj112/tasknest-backend/internal/services"
	"github.com/AnshRaj112/tasknest-backend/internal/webutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Accounts is the account service the handlers delegate to.
type Accounts interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Verify(ctx context.Context, me *models.User, code int) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	Profile(ctx context.Context, me *models.User) (*models.User, error)
	UpdateProfile(ctx context.Context, me *models.User, name string, avatar io.Reader) (*models.User, error)
	UpdatePassword(ctx context.Context, me *models.User, oldPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, code int, newPassword string) error
	AddTask(ctx context.Context, me *models.User, title, description string) ([]models.Task, error)
	RemoveTask(ctx context.Context, me *models.User, taskID string) ([]models.Task, error)
	ToggleTask(ctx context.Context, me *models.User, taskID string) ([]models.Task, error)
}

type TokenIssuer interface {
	Issue(userID primitive.ObjectID) (string, time.Time, error)
}

type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}

type Options struct {
	MaxUploadBytes int64
	SecureCookies  bool
}

type Handler struct {
	accounts Accounts
	tokens   TokenIssuer
	revoker  TokenRevoker
	opts     Options
}

// New wires the handlers. revoker may be nil, in which case logout only
// clears the cookie.
func New(accounts Accounts, tokens TokenIssuer, revoker TokenRevoker, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	return &Handler{accounts: accounts, tokens: tokens, revoker: revoker, opts: opts}
}

// AuthedHandler is a handler that runs on behalf of an authenticated user.
type AuthedHandler func(w http.ResponseWriter, r *http.Request, me *models.User) error

// Authed adapts fn for routes behind middleware.RequireAuth.
func Authed(fn AuthedHandler) http.HandlerFunc {
	return webutil.MakeHandler(func(w http.ResponseWriter, r *http.Request) error {
		p, ok := middleware.GetPrincipal(r.Context())
		if !ok {
			return services.ErrUnauthenticated
		}
		return fn(w, r, p.User)
	})
}

type userResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	User    models.PublicUser `json:"user"`
}

type tasksResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Tasks   []models.Task `json:"tasks"`
}

// sendToken issues a fresh token for user, sets it as the token cookie and
// writes the public view of the user.
func (h *Handler) sendToken(w http.ResponseWriter, status int, message string, user *models.User) error {
	token, expiresAt, err := h.tokens.Issue(user.ID)
	if err != nil {
		return webutil.ErrInternalServerWrap("issue token", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	webutil.RespondWithJSON(w, status, userResponse{
		Success: true,
		Message: message,
		User:    user.Public(),
	})
	return nil
}

func (h *Handler) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func respondTasks(w http.ResponseWriter, message string, tasks []models.Task) {
	if tasks == nil {
		tasks = []models.Task{}
	}
	webutil.RespondWithJSON(w, http.StatusOK, tasksResponse{Success: true, Message: message, Tasks: tasks})
}

func respondOK(w http.ResponseWriter, status int, message string) {
	webutil.RespondWithJSON(w, status, webutil.Envelope{Success: true, Message: message})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched so
// the caller's missing-field checks apply.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return webutil.ErrBadRequest("Invalid request body")
	}
	return nil
}

// otpField accepts the code as a JSON number or a numeric string.
type otpField struct {
	value int
	valid bool
}

func (o *otpField) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		// a non-numeric code can never match; leave it invalid
		return nil
	}
	o.value, o.valid = n, true
	return nil
}

func (o otpField) Int() (int, bool) {
	return o.value, o.valid
}
