package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt cost factor for local credentials
const Cost = 10

const (
	MinLength = 6
	MaxLength = 128

	// bcrypt input ceiling; multi-byte runes count once per byte
	MaxBytes = 72
)

var ErrWeakPassword = errors.New("weak password")

// hashes a plaintext password; the salt is embedded in the result
func Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), Cost)
	if err != nil {
		// never include the plaintext
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hash), nil
}

// reports whether plaintext matches the stored hash
func Verify(plaintext, hash string) bool {
	if hash == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// checks a candidate password before it is hashed.
// The returned error wraps ErrWeakPassword and its message is safe to show to users.
func ValidateStrength(plaintext string) error {
	if plaintext == "" {
		return fmt.Errorf("%w: password is required", ErrWeakPassword)
	}

	n := utf8.RuneCountInString(plaintext)
	if n < MinLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrWeakPassword, MinLength)
	}

	if n > MaxLength {
		return fmt.Errorf("%w: password must be at most %d characters", ErrWeakPassword, MaxLength)
	}

	if len(plaintext) > MaxBytes {
		return fmt.Errorf("%w: password must be at most %d bytes (accented and non-latin characters count as more than one)", ErrWeakPassword, MaxBytes)
	}

	var hasLetter, hasDigit bool
	for _, r := range plaintext {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: password must contain at least one letter and one number", ErrWeakPassword)
	}

	return nil
}

// returns the user-facing part of a ValidateStrength error
func Reason(err error) string {
	if err == nil {
		return ""
	}

	return strings.TrimPrefix(err.Error(), ErrWeakPassword.Error()+": ")
}
