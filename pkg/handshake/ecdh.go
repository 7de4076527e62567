package handshake

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"io"
)

// PublicKeySize is the length of an uncompressed P-256 point
const PublicKeySize = 65

// KeyPair is an ephemeral P-256 key pair
type KeyPair struct {
	PrivateKey *ecdh.PrivateKey
	// PublicKey is the base64 uncompressed point
	PublicKey string
}

// KeyExchangeResult is the server side of one exchange
type KeyExchangeResult struct {
	SharedSecret    []byte
	ServerPublicKey string
}

// EcdhService performs ephemeral P-256 key agreement
type EcdhService struct {
	rand io.Reader
}

// NewEcdhService creates an EcdhService reading from crypto/rand
func NewEcdhService() *EcdhService {
	return &EcdhService{rand: rand.Reader}
}

// GenerateKeyPair returns a new key pair; pairs are never reused
func (s *EcdhService) GenerateKeyPair() (KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(s.rand)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{
		PrivateKey: priv,
		PublicKey:  EncodePublicKey(priv.PublicKey()),
	}, nil
}

// PerformKeyExchange computes a shared secret against the client key with a
// brand-new server key pair. Decode and point validation errors are returned
// unchanged.
func (s *EcdhService) PerformKeyExchange(clientPublicKey string) (KeyExchangeResult, error) {
	clientKey, err := DecodePublicKey(clientPublicKey)
	if err != nil {
		return KeyExchangeResult{}, err
	}

	server, err := s.GenerateKeyPair()
	if err != nil {
		return KeyExchangeResult{}, err
	}

	shared, err := server.PrivateKey.ECDH(clientKey)
	if err != nil {
		return KeyExchangeResult{}, err
	}

	return KeyExchangeResult{
		SharedSecret:    shared,
		ServerPublicKey: server.PublicKey,
	}, nil
}

// EncodePublicKey returns the base64 uncompressed point of pub
func EncodePublicKey(pub *ecdh.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub.Bytes())
}

// DecodePublicKey parses a base64 uncompressed P-256 point
func DecodePublicKey(encoded string) (*ecdh.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	return ecdh.P256().NewPublicKey(raw)
}
