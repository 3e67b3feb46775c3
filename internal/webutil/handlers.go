package webutil

import (
	"errors"
	"log/slog"
	"net/http"
)

// AppHandler is a handler that reports failure by returning an error.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// MakeHandler adapts an AppHandler to http.HandlerFunc. Every returned error
// is logged and rendered as {"success":false,"message":...}.
func MakeHandler(handler AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := handler(w, r); err != nil {
			WriteError(w, r, err)
		}
	}
}

// WriteError is the single place errors are turned into responses.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code, message, kind := StatusOf(err)

	level := slog.LevelWarn
	if code >= 500 {
		level = slog.LevelError
	}
	attrs := []any{
		"code", code,
		"kind", kind.String(),
		"msg", message,
		"path", r.URL.Path,
		"method", r.Method,
	}
	var appErr *Error
	if !errors.As(err, &appErr) || err.Error() != message {
		attrs = append(attrs, "error", err)
	} else if cause := appErr.Unwrap(); cause != nil {
		attrs = append(attrs, "cause", cause)
	}
	slog.Log(r.Context(), level, "request failed", attrs...)

	if HasResponseWriterSentHeader(w) {
		slog.Warn("handler returned error after writing response header",
			"path", r.URL.Path,
			"method", r.Method,
			"error", err,
		)
		return
	}

	RespondWithError(w, code, message)
}
