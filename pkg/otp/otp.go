// Package otp issues and checks the pickup codes exchanged between buyer and seller.
package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Length is the number of decimal digits in a code.
const Length = 6

// Cost is the bcrypt work factor for stored code hashes.
const Cost = 10

var ErrMismatch = errors.New("otp mismatch")

// Generate returns a fresh random code and its bcrypt hash.
// The plaintext must only be handed back to the caller that requested it.
func Generate() (code string, hash string, err error) {
	code, err = generateNumericCode(Length)
	if err != nil {
		return "", "", fmt.Errorf("generate otp code: %w", err)
	}
	raw, err := bcrypt.GenerateFromPassword([]byte(code), Cost)
	if err != nil {
		return "", "", fmt.Errorf("hash otp code: %w", err)
	}
	return code, string(raw), nil
}

// Compare checks a candidate against a stored hash. It returns ErrMismatch when
// the code is wrong and any other error when the hash itself is unusable.
func Compare(hash, candidate string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return fmt.Errorf("compare otp: %w", err)
}

// ValidFormat reports whether s is exactly Length ASCII digits.
func ValidFormat(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func generateNumericCode(length int) (string, error) {
	if length <= 0 {
		length = Length
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
