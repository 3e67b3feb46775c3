package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/AnshRaj112/tasknest-backend/internal/handlers"
	"github.com/AnshRaj112/tasknest-backend/internal/metrics"
	"github.com/AnshRaj112/tasknest-backend/internal/middleware"
	"github.com/AnshRaj112/tasknest-backend/internal/webutil"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const APIPrefix = "/api/v1"

type Middleware = func(http.Handler) http.Handler

type Deps struct {
	Handler *handlers.Handler
	// RequireAuth guards every route that acts on the current user.
	RequireAuth Middleware
	// AuthRateLimit guards credential and OTP routes. Optional.
	AuthRateLimit Middleware
	// GlobalRateLimit is applied to every request when set.
	GlobalRateLimit Middleware

	AllowedOrigins []string
	Production     bool
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Left off, those headers are ignored and cannot dodge per-IP limits.
	TrustProxy bool
	// Ping reports whether backing stores are reachable, for /health.
	Ping func(ctx context.Context) error
}

// NewRouter builds the full HTTP surface.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(d.AllowedOrigins))

	if d.Production {
		r.Use(middleware.SecurityHeaders)
	}
	if d.GlobalRateLimit != nil {
		r.Use(d.GlobalRateLimit)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Server is working"))
	})
	r.Get("/health", healthHandler(d.Ping))
	r.Handle("/metrics", metrics.Handler())

	r.Route(APIPrefix, func(r chi.Router) {
		r.Use(chimw.Timeout(60 * time.Second))
		SetupRoutes(r, d.Handler, d.RequireAuth, d.AuthRateLimit)
	})

	return r
}

// SetupRoutes mounts the API routes on r.
func SetupRoutes(r chi.Router, h *handlers.Handler, requireAuth, authLimit Middleware) {
	if authLimit == nil {
		authLimit = passthrough
	}

	// Public
	r.Group(func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/register", webutil.MakeHandler(h.Register))
		r.Post("/login", webutil.MakeHandler(h.Login))
		// no token cookie here, only the mailed reset code
		r.Post("/forgotpassword", webutil.MakeHandler(h.ForgotPassword))
		r.Put("/resetpassword", webutil.MakeHandler(h.ResetPassword))
	})

	// Authenticated
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.With(authLimit).Post("/verify", handlers.Authed(h.Verify))
		r.Get("/logout", handlers.Authed(h.Logout))

		r.Post("/newtask", handlers.Authed(h.AddTask))
		r.Get("/task/{taskId}", handlers.Authed(h.ToggleTask))
		r.Delete("/task/{taskId}", handlers.Authed(h.RemoveTask))

		r.Get("/me", handlers.Authed(h.Me))
		r.Put("/updateprofile", handlers.Authed(h.UpdateProfile))
		r.Put("/updatepassword", handlers.Authed(h.UpdatePassword))
	})
}

func passthrough(next http.Handler) http.Handler { return next }

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				webutil.RespondWithError(w, http.StatusServiceUnavailable, "Unavailable")
				return
			}
		}
		webutil.RespondWithJSON(w, http.StatusOK, webutil.Envelope{Success: true, Message: "OK"})
	}
}
