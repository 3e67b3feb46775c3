package handlers

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/AnshRaj112/tasknest-backend/internal/webutil"
)

const (
	avatarField         = "avatar"
	multipartMemorySize = 10 << 20
)

var errFileTooLarge = webutil.NewError(webutil.KindValidation, http.StatusRequestEntityTooLarge, "File too large")

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart parses r as multipart/form-data no larger than maxBytes.
// The caller must call cleanup.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) (cleanup func(), err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	cleanup = func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	if err := r.ParseMultipartForm(multipartMemorySize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return cleanup, errFileTooLarge
		}
		return cleanup, webutil.ErrBadRequest("Failed to parse form")
	}
	return cleanup, nil
}

// avatarFile reads the optional avatar part into memory. It returns nil when
// the form has no avatar.
func avatarFile(r *http.Request) (io.Reader, error) {
	file, _, err := r.FormFile(avatarField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, webutil.ErrBadRequest("Invalid avatar file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, webutil.ErrBadRequest("Invalid avatar file")
	}
	if len(data) == 0 {
		return nil, nil
	}
	return bytes.NewReader(data), nil
}
