// Password hashing for email sign-in.
//
// Passwords are stored only as bcrypt hashes. The hash embeds its own salt
// and cost:
//
//	$2a$12$<22-char salt><31-char hash>
//
// so a single users.password_hash column is enough.

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultCost = 12

	// MinPasswordLength is the shortest password registration accepts.
	MinPasswordLength = 6

	// maxPasswordBytes is bcrypt's input limit. Longer input would be
	// silently truncated, so it is rejected instead.
	maxPasswordBytes = 72
)

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// PasswordService hashes and verifies passwords. The cost is a field so
// tests can run at bcrypt's minimum.
type PasswordService struct {
	cost int
}

// NewPasswordService returns a PasswordService at the production cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest returns a PasswordService with the given cost.
// Pass bcrypt.MinCost (4) from tests in other packages.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", maxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash and ErrPasswordMismatch
// when it does not. Any other error means the stored hash is unusable
// (for example an account created through GitHub has none).
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
