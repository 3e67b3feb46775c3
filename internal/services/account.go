package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/AnshRaj112/tasknest-backend/internal/models"
	"github.com/AnshRaj112/tasknest-backend/pkg/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	verifySubject = "Verify Your Account"
	resetSubject  = "Request for password reset"
)

// AccountService implements registration, login, profile, password and task
// operations on top of a UserStore.
type AccountService struct {
	users   UserStore
	otp     *OTPManager
	avatars AvatarStorage
	mailer  MailSender
	now     func() time.Time
}

func NewAccountService(users UserStore, otp *OTPManager, avatars AvatarStorage, mailer MailSender) *AccountService {
	return &AccountService{
		users:   users,
		otp:     otp,
		avatars: avatars,
		mailer:  mailer,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Avatar   io.Reader
}

// Register creates an unverified user with a pending verification code and
// mails the code.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := utils.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" || in.Avatar == nil {
		return nil, ErrMissingFields
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := utils.ValidatePassword(in.Password); err != nil {
		return nil, ErrWeakPassword
	}

	if _, err := s.users.FindByEmail(ctx, email, false); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	avatar, err := s.avatars.Upload(ctx, in.Avatar)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Avatar:       avatar,
		Tasks:        []models.Task{},
	}
	code, err := s.otp.Generate(user, models.OTPVerification)
	if err != nil {
		s.discardAvatar(ctx, avatar.PublicID)
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		s.discardAvatar(ctx, avatar.PublicID)
		return nil, err
	}

	s.sendOTP(ctx, user.Email, verifySubject, fmt.Sprintf(
		"Your OTP is %s if you haven't requested for this then ignore this message", utils.FormatOTP(code)))

	return user, nil
}

// Verify consumes the pending verification code of me and marks the account verified.
func (s *AccountService) Verify(ctx context.Context, me *models.User, code int) (*models.User, error) {
	switch s.otp.Check(me, models.OTPVerification, code) {
	case OTPConsumed:
		me.Verified = true
		if err := s.users.Save(ctx, me, FieldVerified|FieldVerifyOTP); err != nil {
			return nil, err
		}
		return me, nil
	case OTPExpired:
		if err := s.users.Save(ctx, me, FieldVerifyOTP); err != nil {
			slog.WarnContext(ctx, "failed to clear expired otp", "user_id", me.ID.Hex(), "error", err)
		}
	}
	return nil, ErrInvalidOTP
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}

	user, err := s.users.FindByEmail(ctx, email, true)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		slog.WarnContext(ctx, "stored password hash is unreadable", "user_id", user.ID.Hex(), "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Profile re-reads the current user.
func (s *AccountService) Profile(ctx context.Context, me *models.User) (*models.User, error) {
	return s.users.FindByID(ctx, me.ID, false)
}

// UpdateProfile changes the name when non-empty and replaces the avatar when
// one is given. The new image is stored before the old one is destroyed.
func (s *AccountService) UpdateProfile(ctx context.Context, me *models.User, name string, avatar io.Reader) (*models.User, error) {
	if name = strings.TrimSpace(name); name != "" {
		me.Name = name
	}

	if avatar == nil {
		if err := s.users.Save(ctx, me, FieldName); err != nil {
			return nil, err
		}
		return me, nil
	}

	uploaded, err := s.avatars.Upload(ctx, avatar)
	if err != nil {
		return nil, err
	}
	previous := me.Avatar.PublicID
	me.Avatar = uploaded

	if err := s.users.Save(ctx, me, FieldName|FieldAvatar); err != nil {
		s.discardAvatar(ctx, uploaded.PublicID)
		return nil, err
	}
	s.discardAvatar(ctx, previous)
	return me, nil
}

func (s *AccountService) UpdatePassword(ctx context.Context, me *models.User, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return ErrMissingFields
	}

	user, err := s.users.FindByID(ctx, me.ID, true)
	if err != nil {
		return err
	}

	ok, err := utils.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidOldPassword
	}
	if err := utils.ValidatePassword(newPassword); err != nil {
		return ErrWeakPassword
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	return s.users.Save(ctx, user, FieldPassword)
}

// ForgotPassword issues a reset code for the account at email and mails it.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return ErrMissingFields
	}

	user, err := s.users.FindByEmail(ctx, email, false)
	if err != nil {
		return err
	}

	code, err := s.otp.Generate(user, models.OTPPasswordReset)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := s.users.Save(ctx, user, FieldResetOTP); err != nil {
		return err
	}

	s.sendOTP(ctx, user.Email, resetSubject, fmt.Sprintf(
		"Your OTP for reseting password is %s if you haven't requested for this then ignore this message", utils.FormatOTP(code)))
	return nil
}

// ResetPassword consumes a reset code and sets the new password in the same write.
func (s *AccountService) ResetPassword(ctx context.Context, code int, newPassword string) error {
	if newPassword == "" {
		return ErrMissingFields
	}
	if err := utils.ValidatePassword(newPassword); err != nil {
		return ErrWeakPassword
	}

	user, err := s.users.FindByResetOTP(ctx, code, s.otp.now())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidOTP
		}
		return err
	}
	if s.otp.Check(user, models.OTPPasswordReset, code) != OTPConsumed {
		return ErrInvalidOTP
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	return s.users.Save(ctx, user, FieldPassword|FieldResetOTP)
}

func (s *AccountService) AddTask(ctx context.Context, me *models.User, title, description string) ([]models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrMissingFields
	}

	me.Tasks = append(me.Tasks, models.Task{
		ID:          primitive.NewObjectID(),
		Title:       title,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.now(),
	})
	if err := s.users.Save(ctx, me, FieldTasks); err != nil {
		return nil, err
	}
	return me.Tasks, nil
}

// RemoveTask deletes the task with taskID. Unknown ids leave the list untouched.
func (s *AccountService) RemoveTask(ctx context.Context, me *models.User, taskID string) ([]models.Task, error) {
	id, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return tasksOrEmpty(me.Tasks), nil
	}
	i := me.FindTask(id)
	if i < 0 {
		return tasksOrEmpty(me.Tasks), nil
	}

	me.Tasks = append(me.Tasks[:i], me.Tasks[i+1:]...)
	if err := s.users.Save(ctx, me, FieldTasks); err != nil {
		return nil, err
	}
	return tasksOrEmpty(me.Tasks), nil
}

// ToggleTask flips the completed flag of the task with taskID.
func (s *AccountService) ToggleTask(ctx context.Context, me *models.User, taskID string) ([]models.Task, error) {
	id, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil, ErrTaskNotFound
	}
	i := me.FindTask(id)
	if i < 0 {
		return nil, ErrTaskNotFound
	}

	me.Tasks[i].Completed = !me.Tasks[i].Completed
	if err := s.users.Save(ctx, me, FieldTasks); err != nil {
		return nil, err
	}
	return me.Tasks, nil
}

// sendOTP hands the code to the mailer. A delivery failure does not fail the
// request; the code can be requested again.
func (s *AccountService) sendOTP(ctx context.Context, to, subject, body string) {
	if err := s.mailer.SendMail(ctx, to, subject, body); err != nil {
		slog.ErrorContext(ctx, "failed to send otp mail", "to", to, "subject", subject, "error", err)
	}
}

func (s *AccountService) discardAvatar(ctx context.Context, publicID string) {
	if publicID == "" {
		return
	}
	if err := s.avatars.Destroy(ctx, publicID); err != nil {
		slog.WarnContext(ctx, "failed to delete avatar", "public_id", publicID, "error", err)
	}
}

func tasksOrEmpty(tasks []models.Task) []models.Task {
	if tasks == nil {
		return []models.Task{}
	}
	return tasks
}
