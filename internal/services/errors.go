package services

import "github.com/AnshRaj112/tasknest-backend/internal/webutil"

// Errors returned by the account and auth services. Each carries the status
// and message the API answers with.
var (
	ErrMissingFields      = webutil.ErrBadRequest("Please fill all the required fields")
	ErrInvalidEmail       = webutil.ErrBadRequest("Please enter a valid email address")
	ErrWeakPassword       = webutil.ErrBadRequest("Password must be at least 8 characters long")
	ErrUserExists         = webutil.ErrConflict("User already exists")
	ErrInvalidCredentials = webutil.ErrUnauthorized("Invalid credentials")
	ErrInvalidOldPassword = webutil.ErrBadRequest("Invalid old password")
	ErrInvalidOTP         = webutil.ErrOTP("Invalid OTP or OTP has been expired")
	ErrUserNotFound       = webutil.ErrNotFound("User not exists")
	ErrTaskNotFound       = webutil.ErrNotFound("Task not found")
	ErrUnauthenticated    = webutil.ErrUnauthorized("Please login to access this page")
	ErrInvalidToken       = webutil.ErrUnauthorized("Invalid token, please login again")
	ErrExpiredToken       = webutil.ErrUnauthorized("Session expired, please login again")
)
