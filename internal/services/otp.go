package services

import (
	"time"

	"github.com/AnshRaj112/tasknest-backend/internal/metrics"
	"github.com/AnshRaj112/tasknest-backend/internal/models"
	"github.com/AnshRaj112/tasknest-backend/pkg/utils"
)

// OTPOutcome is the result of checking a supplied code against a user's
// pending one.
type OTPOutcome int

const (
	OTPRejected OTPOutcome = iota
	OTPConsumed
	OTPExpired
)

func (o OTPOutcome) String() string {
	switch o {
	case OTPConsumed:
		return "consumed"
	case OTPExpired:
		return "expired"
	default:
		return "rejected"
	}
}

// OTPManager issues and checks one-time codes. It only mutates the user in
// memory; callers persist the change.
type OTPManager struct {
	ttl      time.Duration
	now      func() time.Time
	generate func() (int, error)
}

func NewOTPManager(ttl time.Duration) *OTPManager {
	return &OTPManager{
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		generate: utils.GenerateOTP,
	}
}

// Generate replaces any pending code of kind with a fresh one valid for the
// configured TTL and returns it.
func (m *OTPManager) Generate(u *models.User, kind models.OTPKind) (int, error) {
	code, err := m.generate()
	if err != nil {
		return 0, err
	}
	expiry := m.now().Add(m.ttl)
	u.SetPendingOTP(kind, &code, &expiry)

	metrics.OTPIssued.WithLabelValues(kind.String()).Inc()
	return code, nil
}

// Check compares supplied against the pending code of kind. A code is valid
// strictly before its expiry. Consumed and Expired both clear the slot.
func (m *OTPManager) Check(u *models.User, kind models.OTPKind, supplied int) OTPOutcome {
	outcome := m.check(u, kind, supplied)
	metrics.OTPChecks.WithLabelValues(kind.String(), outcome.String()).Inc()
	return outcome
}

func (m *OTPManager) check(u *models.User, kind models.OTPKind, supplied int) OTPOutcome {
	code, expiry := u.PendingOTP(kind)
	if code == nil || expiry == nil {
		return OTPRejected
	}
	if !m.now().Before(*expiry) {
		u.SetPendingOTP(kind, nil, nil)
		return OTPExpired
	}
	if *code != supplied {
		return OTPRejected
	}
	u.SetPendingOTP(kind, nil, nil)
	return OTPConsumed
}
