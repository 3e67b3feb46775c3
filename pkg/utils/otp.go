package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// OTPUpperBound is the exclusive upper bound of generated codes (six digits).
const OTPUpperBound = 1000000

// GenerateOTP draws a code uniformly from [0, OTPUpperBound) using crypto/rand.
func GenerateOTP() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(OTPUpperBound))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}

// FormatOTP renders a code zero-padded to six digits for display in emails.
func FormatOTP(code int) string {
	return fmt.Sprintf("%06d", code)
}
