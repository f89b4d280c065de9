package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/onboarding/internal/domain"
	"github.com/ignite/onboarding/internal/service/notify"
)

// ErrBadSignature is returned for pixel data whose signature does not verify.
var ErrBadSignature = errors.New("tracking: bad signature")

// sigLen is the number of hex characters kept from the HMAC.
const sigLen = 32

// Signer encodes and verifies open-pixel parameters.
type Signer struct {
	key []byte
}

// NewSigner creates a signer. An empty key disables signing.
func NewSigner(key string) *Signer {
	return &Signer{key: []byte(key)}
}

// Enabled reports whether a signing key is configured.
func (s *Signer) Enabled() bool { return len(s.key) > 0 }

func (s *Signer) sign(data string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))[:sigLen]
}

// Encode returns the data and signature path segments for an email.
func (s *Signer) Encode(applicationID string, kind domain.EmailKind) (data, sig string) {
	data = base64.RawURLEncoding.EncodeToString([]byte(applicationID + "|" + string(kind)))
	return data, s.sign(data)
}

// Decode verifies sig and returns the application id and email kind.
func (s *Signer) Decode(data, sig string) (string, domain.EmailKind, error) {
	if !s.Enabled() || !hmac.Equal([]byte(s.sign(data)), []byte(sig)) {
		return "", "", ErrBadSignature
	}
	raw, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return "", "", fmt.Errorf("tracking: decode data: %w", err)
	}
	id, kind, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" || !domain.EmailKind(kind).Valid() {
		return "", "", fmt.Errorf("tracking: malformed data")
	}
	return id, domain.EmailKind(kind), nil
}

// PixelURL returns a notify.PixelFunc producing
// {baseURL}/track/open/{data}/{sig}. It returns nil when signing is disabled
// so mail goes out without a pixel.
func (s *Signer) PixelURL(baseURL string) notify.PixelFunc {
	if !s.Enabled() || baseURL == "" {
		return nil
	}
	base := strings.TrimRight(baseURL, "/")
	return func(applicationID string, kind domain.EmailKind) string {
		data, sig := s.Encode(applicationID, kind)
		return base + "/track/open/" + data + "/" + sig
	}
}
