package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/AnshRaj112/tasknest-backend/internal/models"
)

type updateProfileRequest struct {
	Name string `json:"name"`
}

type updatePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Me handles GET /me and refreshes the token cookie.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, me *models.User) error {
	user, err := h.accounts.Profile(r.Context(), me)
	if err != nil {
		return err
	}
	return h.sendToken(w, http.StatusOK, fmt.Sprintf("Welcome back %s", user.Name), user)
}

// UpdateProfile handles PUT /updateprofile. It accepts multipart with an
// optional avatar file, or a JSON body with just a name.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request, me *models.User) error {
	var (
		name   string
		avatar io.Reader
	)

	if isMultipart(r) {
		cleanup, err := parseMultipart(w, r, h.opts.MaxUploadBytes)
		defer cleanup()
		if err != nil {
			return err
		}
		if avatar, err = avatarFile(r); err != nil {
			return err
		}
		name = r.FormValue("name")
	} else {
		var req updateProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			return err
		}
		name = req.Name
	}

	if _, err := h.accounts.UpdateProfile(r.Context(), me, name, avatar); err != nil {
		return err
	}
	respondOK(w, http.StatusOK, "Your profile has been updated")
	return nil
}

// UpdatePassword handles PUT /updatepassword.
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request, me *models.User) error {
	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	if err := h.accounts.UpdatePassword(r.Context(), me, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	respondOK(w, http.StatusOK, "Your password has been updated")
	return nil
}
