package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Length is the number of decimal digits in a verification code.
const Length = 6

var ten = big.NewInt(10)

// Generate returns a Length-digit numeric code drawn from crypto/rand.
// Leading zeros are kept, so every code in 000000-999999 is equally likely.
func Generate() (string, error) {
	b := make([]byte, Length)
	for i := range b {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = '0' + byte(n.Int64())
	}
	return string(b), nil
}

// Hash returns the hex SHA-256 of code. Only hashes are stored, and
// redemption matches on the hash.
func Hash(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}
