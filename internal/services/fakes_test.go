package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/AnshRaj112/tasknest-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memUserStore is an in-memory UserStore. It copies on every read and write
// so callers cannot alias stored state.
type memUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User

	saveErr    error
	clearCalls int
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[primitive.ObjectID]models.User)}
}

func cloneUser(u models.User) models.User {
	u.Tasks = append([]models.Task(nil), u.Tasks...)
	return u
}

func (s *memUserStore) Create(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrUserExists
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = cloneUser(*u)
	return nil
}

func (s *memUserStore) get(match func(models.User) bool, withPassword bool) (*models.User, error) {
	for _, u := range s.users {
		if match(u) {
			out := cloneUser(u)
			if !withPassword {
				out.PasswordHash = ""
			}
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memUserStore) FindByID(ctx context.Context, id primitive.ObjectID, withPassword bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(func(u models.User) bool { return u.ID == id }, withPassword)
}

func (s *memUserStore) FindByEmail(ctx context.Context, email string, withPassword bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(func(u models.User) bool { return u.Email == email }, withPassword)
}

func (s *memUserStore) FindByResetOTP(ctx context.Context, code int, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(func(u models.User) bool {
		return u.ResetPasswordOTP != nil && *u.ResetPasswordOTP == code &&
			u.ResetPasswordOTPExpiry != nil && u.ResetPasswordOTPExpiry.After(now)
	}, true)
}

func (s *memUserStore) Save(ctx context.Context, u *models.User, fields UserField) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	stored, ok := s.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	next := cloneUser(*u)
	if fields.Has(FieldName) {
		stored.Name = next.Name
	}
	if fields.Has(FieldAvatar) {
		stored.Avatar = next.Avatar
	}
	if fields.Has(FieldVerified) {
		stored.Verified = next.Verified
	}
	if fields.Has(FieldPassword) && next.PasswordHash != "" {
		stored.PasswordHash = next.PasswordHash
	}
	if fields.Has(FieldTasks) {
		stored.Tasks = next.Tasks
	}
	if fields.Has(FieldVerifyOTP) {
		stored.OTP, stored.OTPExpiry = next.OTP, next.OTPExpiry
	}
	if fields.Has(FieldResetOTP) {
		stored.ResetPasswordOTP, stored.ResetPasswordOTPExpiry = next.ResetPasswordOTP, next.ResetPasswordOTPExpiry
	}
	stored.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = stored
	return nil
}

func (s *memUserStore) ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls++
	var n int64
	for id, u := range s.users {
		changed := false
		if u.OTPExpiry != nil && !u.OTPExpiry.After(now) {
			u.OTP, u.OTPExpiry = nil, nil
			changed = true
		}
		if u.ResetPasswordOTPExpiry != nil && !u.ResetPasswordOTPExpiry.After(now) {
			u.ResetPasswordOTP, u.ResetPasswordOTPExpiry = nil, nil
			changed = true
		}
		if changed {
			s.users[id] = u
			n++
		}
	}
	return n, nil
}

func (s *memUserStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearCalls
}

func (s *memUserStore) stored(id primitive.ObjectID) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.users[id])
}

type fakeAvatars struct {
	mu        sync.Mutex
	uploads   int
	destroyed []string
	uploadErr error
}

func (f *fakeAvatars) Upload(ctx context.Context, file io.Reader) (models.Avatar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return models.Avatar{}, f.uploadErr
	}
	if _, err := io.ReadAll(file); err != nil {
		return models.Avatar{}, err
	}
	f.uploads++
	id := fmt.Sprintf("todoApp/avatar%d", f.uploads)
	return models.Avatar{PublicID: id, URL: "https://res.example/" + id}, nil
}

func (f *fakeAvatars) Destroy(ctx context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	// fail makes the first n sends return errSMTPDown.
	fail int
}

var errSMTPDown = errors.New("smtp: connection refused")

func (f *fakeMailer) SendMail(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errSMTPDown
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (f *fakeMailer) messages() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sent...)
}

// fixedClock is a settable time source for OTP and token tests.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
