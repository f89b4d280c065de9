package hiring

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// TokenIssuer produces unguessable bearer strings for self-service links.
type TokenIssuer interface {
	Issue() (string, error)
}

// RandomTokens issues URL-safe tokens from crypto/rand.
type RandomTokens struct {
	Bytes int // entropy per token; values below 16 are raised to 32
}

// Issue returns a new base64url token without padding.
func (t RandomTokens) Issue() (string, error) {
	n := t.Bytes
	if n < 16 {
		n = 32
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789!@#$%"

// GeneratePassword returns a random temporary credential of the given length.
func GeneratePassword(length int) (string, error) {
	if length < 12 {
		length = 12
	}
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
