package config

import "strings"

// PrefixConfig holds the mount points of the HTTP route groups.
//
// Example environment variables:
//
//	API_PREFIX_ACCESS=/api/v1/attendance/access
//	API_PREFIX_ENROLLMENT=/api/v1/attendance/enrollment
//	API_PREFIX_LOGIN=/api/v1/attendance/login
type PrefixConfig struct {
	Access     string // Access state endpoint
	Enrollment string // Enrollment attempt, consent and completion
	Login      string // ECDH login and logout
}

// DefaultPrefixes returns the default v1 prefix configuration
func DefaultPrefixes() PrefixConfig {
	return PrefixesUnder("/api/v1/attendance")
}

// PrefixesUnder returns every route group mounted under base
func PrefixesUnder(base string) PrefixConfig {
	base = strings.TrimRight(base, "/")
	return PrefixConfig{
		Access:     base + "/access",
		Enrollment: base + "/enrollment",
		Login:      base + "/login",
	}
}

// NewPrefixConfigFromEnv loads prefixes from the environment. API_PREFIX_BASE
// moves all groups at once; individual API_PREFIX_* variables win over it.
func NewPrefixConfigFromEnv() PrefixConfig {
	defaults := DefaultPrefixes()
	if base := GetEnvOrDefault("API_PREFIX_BASE", ""); base != "" {
		defaults = PrefixesUnder(base)
	}
	return PrefixConfig{
		Access:     GetEnvOrDefault("API_PREFIX_ACCESS", defaults.Access),
		Enrollment: GetEnvOrDefault("API_PREFIX_ENROLLMENT", defaults.Enrollment),
		Login:      GetEnvOrDefault("API_PREFIX_LOGIN", defaults.Login),
	}
}

// Validate checks every prefix is an absolute path
func (p PrefixConfig) Validate() error {
	var errs ValidationErrors
	for field, value := range map[string]string{
		"API_PREFIX_ACCESS":     p.Access,
		"API_PREFIX_ENROLLMENT": p.Enrollment,
		"API_PREFIX_LOGIN":      p.Login,
	} {
		if !strings.HasPrefix(value, "/") {
			errs = append(errs, ValidationError{Field: field, Message: "must start with /"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
