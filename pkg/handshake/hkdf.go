package handshake

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/hkdf"

	apperrors "github.com/tendant/attendance-gate/pkg/errors"
)

const (
	// SessionKeySize is the length of a derived session key
	SessionKeySize = 32
	// HandshakeSecretSize is the number of random bytes in a handshake secret
	HandshakeSecretSize = 32

	DefaultTotpPeriod = 30
	DefaultTotpSkew   = 1
)

// TotpOptions configures code generation from handshake secrets
type TotpOptions struct {
	Digits otp.Digits
	Period uint
	Skew   uint
}

// DefaultTotpOptions returns six digit, 30 second codes accepted one step either side
func DefaultTotpOptions() TotpOptions {
	return TotpOptions{
		Digits: otp.DigitsSix,
		Period: DefaultTotpPeriod,
		Skew:   DefaultTotpSkew,
	}
}

// HkdfService derives credential-bound session keys and device codes
type HkdfService struct {
	totp TotpOptions
	now  func() time.Time
}

// Option configures an HkdfService
type Option func(*HkdfService)

// WithTotpOptions overrides the code parameters
func WithTotpOptions(opts TotpOptions) Option {
	return func(s *HkdfService) {
		s.totp = opts
	}
}

// WithClock overrides the time source used for codes
func WithClock(now func() time.Time) Option {
	return func(s *HkdfService) {
		s.now = now
	}
}

// NewHkdfService creates an HkdfService
func NewHkdfService(opts ...Option) *HkdfService {
	s := &HkdfService{
		totp: DefaultTotpOptions(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeriveSessionKey expands the ECDH shared secret into a 32 byte key with the
// credential id as HKDF info, so the key is only valid for that credential
func (s *HkdfService) DeriveSessionKey(sharedSecret []byte, credentialID string) ([]byte, error) {
	if len(sharedSecret) == 0 {
		return nil, apperrors.InvalidInput("sharedSecret", "must not be empty")
	}
	if credentialID == "" {
		return nil, apperrors.InvalidInput("credentialId", "must not be empty")
	}

	reader := hkdf.New(sha256.New, sharedSecret, nil, []byte(credentialID))
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	return key, nil
}

func (s *HkdfService) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    s.totp.Period,
		Skew:      s.totp.Skew,
		Digits:    s.totp.Digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// totpSecret turns a handshake secret into the base32 key otp expects
func totpSecret(handshakeSecret string) string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(handshakeSecret))
}

// GenerateTotp returns the current code for a device's handshake secret
func (s *HkdfService) GenerateTotp(handshakeSecret string) (string, error) {
	if handshakeSecret == "" {
		return "", apperrors.InvalidInput("handshakeSecret", "must not be empty")
	}
	code, err := totp.GenerateCodeCustom(totpSecret(handshakeSecret), s.now().UTC(), s.validateOpts())
	if err != nil {
		slog.Error("Failed to generate device code", "error", err)
		return "", err
	}
	return code, nil
}

// ValidateTotp checks a code against a device's handshake secret
func (s *HkdfService) ValidateTotp(handshakeSecret, code string) (bool, error) {
	if handshakeSecret == "" {
		return false, apperrors.InvalidInput("handshakeSecret", "must not be empty")
	}
	valid, err := totp.ValidateCustom(code, totpSecret(handshakeSecret), s.now().UTC(), s.validateOpts())
	if err != nil {
		slog.Error("Failed to validate device code", "error", err)
		return false, err
	}
	return valid, nil
}

// NewHandshakeSecret returns a random secret to store with a new device
func NewHandshakeSecret() (string, error) {
	buf := make([]byte, HandshakeSecretSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate handshake secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
