package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AnshRaj112/tasknest-backend/internal/middleware"
	"github.com/AnshRaj112/tasknest-backend/internal/models"
	"github.com/AnshRaj112/tasknest-backend/internal/services"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	OTP otpField `json:"otp"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	OTP         otpField `json:"otp"`
	NewPassword string   `json:"newPassword"`
}

// Register handles POST /register (multipart: name, email, password, avatar).
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) error {
	if !isMultipart(r) {
		return services.ErrMissingFields
	}
	cleanup, err := parseMultipart(w, r, h.opts.MaxUploadBytes)
	defer cleanup()
	if err != nil {
		return err
	}

	avatar, err := avatarFile(r)
	if err != nil {
		return err
	}

	user, err := h.accounts.Register(r.Context(), services.RegisterInput{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Avatar:   avatar,
	})
	if err != nil {
		return err
	}
	return h.sendToken(w, http.StatusCreated, "OTP sent, please verify your account", user)
}

// Verify handles POST /verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request, me *models.User) error {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	code, ok := req.OTP.Int()
	if !ok {
		return services.ErrInvalidOTP
	}

	user, err := h.accounts.Verify(r.Context(), me, code)
	if err != nil {
		return err
	}
	return h.sendToken(w, http.StatusOK, "Account verified successfully", user)
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.sendToken(w, http.StatusOK, "Logged in successfully", user)
}

// Logout handles GET /logout. The cookie is cleared even if revoking the
// token server-side fails.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, me *models.User) error {
	if p, ok := middleware.GetPrincipal(r.Context()); ok && h.revoker != nil && p.Claims != nil && p.Claims.ExpiresAt != nil {
		if err := h.revoker.Revoke(r.Context(), p.Claims.ID, p.Claims.ExpiresAt.Time); err != nil {
			slog.WarnContext(r.Context(), "failed to revoke token", "user_id", me.ID.Hex(), "error", err)
		}
	}

	h.clearTokenCookie(w)
	respondOK(w, http.StatusOK, "Logged out successfully")
	return nil
}

// ForgotPassword handles POST /forgotpassword. Unlike register and login it
// answers 201 {success, message} and never sets the token cookie: knowing an
// address must not be enough to obtain a session for it.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) error {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	if err := h.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		return err
	}
	respondOK(w, http.StatusCreated, "OTP sent to your email for resetting password")
	return nil
}

// ResetPassword handles PUT /resetpassword.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) error {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	code, ok := req.OTP.Int()
	if !ok {
		if req.NewPassword == "" {
			return services.ErrMissingFields
		}
		return services.ErrInvalidOTP
	}

	if err := h.accounts.ResetPassword(r.Context(), code, req.NewPassword); err != nil {
		return err
	}
	respondOK(w, http.StatusOK, "Password reset successfully")
	return nil
}
