package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Avatar points at an image hosted in remote object storage.
type Avatar struct {
	PublicID string `bson:"public_id" json:"public_id"`
	URL      string `bson:"url" json:"url"`
}

// Task is embedded in its owner's document and has no lifecycle of its own.
type Task struct {
	ID          primitive.ObjectID `bson:"_id" json:"_id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Completed   bool               `bson:"completed" json:"completed"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`

	Name     string `bson:"name" json:"name"`
	Email    string `bson:"email" json:"email"`
	Verified bool   `bson:"verified" json:"verified"`

	// Empty unless the user was loaded with its password.
	PasswordHash string `bson:"password,omitempty" json:"-"`

	Avatar Avatar `bson:"avatar" json:"avatar"`
	Tasks  []Task `bson:"tasks" json:"tasks"`

	OTP                    *int       `bson:"otp" json:"-"`
	OTPExpiry              *time.Time `bson:"otp_expiry" json:"-"`
	ResetPasswordOTP       *int       `bson:"resetPasswordOtp" json:"-"`
	ResetPasswordOTPExpiry *time.Time `bson:"resetPasswordOtpExpiry" json:"-"`
}

// OTPKind selects one of the two independent one-time code slots on a user.
type OTPKind int

const (
	OTPVerification OTPKind = iota
	OTPPasswordReset
)

func (k OTPKind) String() string {
	if k == OTPPasswordReset {
		return "password_reset"
	}
	return "verification"
}

// PendingOTP returns the code and expiry stored for kind. Both are nil when
// nothing is pending.
func (u *User) PendingOTP(kind OTPKind) (*int, *time.Time) {
	if kind == OTPPasswordReset {
		return u.ResetPasswordOTP, u.ResetPasswordOTPExpiry
	}
	return u.OTP, u.OTPExpiry
}

// SetPendingOTP stores code and expiry for kind. Pass nil, nil to clear the slot.
func (u *User) SetPendingOTP(kind OTPKind, code *int, expiry *time.Time) {
	if kind == OTPPasswordReset {
		u.ResetPasswordOTP, u.ResetPasswordOTPExpiry = code, expiry
		return
	}
	u.OTP, u.OTPExpiry = code, expiry
}

// FindTask returns the index of the task with id, or -1.
func (u *User) FindTask(id primitive.ObjectID) int {
	for i := range u.Tasks {
		if u.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// PublicUser is the view of a user returned to clients. It never carries
// the password hash or OTP state.
type PublicUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Avatar   Avatar `json:"avatar"`
	Tasks    []Task `json:"tasks"`
	Verified bool   `json:"verified"`
}

func (u *User) Public() PublicUser {
	tasks := u.Tasks
	if tasks == nil {
		tasks = []Task{}
	}
	return PublicUser{
		Name:     u.Name,
		Email:    u.Email,
		Avatar:   u.Avatar,
		Tasks:    tasks,
		Verified: u.Verified,
	}
}
