package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// FingerprintHeader carries a client-reported hardware fingerprint
const FingerprintHeader = "X-Device-Fingerprint"

// FingerprintData contains the request components hashed into a derived fingerprint
type FingerprintData struct {
	UserAgent     string
	AcceptHeaders string
	Platform      string
	HardwareID    string
}

// GenerateFingerprint hashes the fingerprint components with SHA-256.
// A hardware id, when present, is the only input.
func GenerateFingerprint(data FingerprintData) string {
	combined := data.HardwareID
	if combined == "" {
		combined = fmt.Sprintf("%s|%s|%s", data.UserAgent, data.AcceptHeaders, data.Platform)
	}
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// ExtractFingerprintDataFromRequest collects fingerprint components from request headers
func ExtractFingerprintDataFromRequest(r *http.Request) FingerprintData {
	return FingerprintData{
		UserAgent: r.UserAgent(),
		AcceptHeaders: r.Header.Get("Accept") + "|" +
			r.Header.Get("Accept-Language") + "|" +
			r.Header.Get("Accept-Encoding"),
		Platform:   r.Header.Get("Sec-CH-UA-Platform"),
		HardwareID: r.Header.Get("X-Device-ID"),
	}
}

// GetRequestFingerprint returns the client-reported fingerprint, or one derived
// from the request headers when the client did not send one
func GetRequestFingerprint(r *http.Request) string {
	if fp := strings.TrimSpace(r.Header.Get(FingerprintHeader)); fp != "" {
		return fp
	}
	return GenerateFingerprint(ExtractFingerprintDataFromRequest(r))
}
