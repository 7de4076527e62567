package config

import (
	"strconv"
	"time"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBolt     = "bolt"
)

// GatewayConfig holds the persistence and handshake settings of the access gate.
// TotpPeriod is an ISO-8601 duration ("PT30S"). The session key lifetime is
// fixed by sessionkey.DefaultTTL and is not configurable.
type GatewayConfig struct {
	DeviceStore  string `env:"GATE_DEVICE_STORE" env-default:"postgres"`
	SessionStore string `env:"GATE_SESSION_STORE" env-default:"bolt"`
	BoltPath     string `env:"GATE_BOLT_PATH" env-default:"sessions.db"`
	TotpDigits   int    `env:"GATE_TOTP_DIGITS" env-default:"6"`
	TotpPeriod   string `env:"GATE_TOTP_PERIOD" env-default:"PT30S"`
	TotpSkew     uint   `env:"GATE_TOTP_SKEW" env-default:"1"`
}

// TotpPeriodSeconds returns the TOTP step in whole seconds
func (c GatewayConfig) TotpPeriodSeconds() (uint, error) {
	d, err := ParseDuration(c.TotpPeriod)
	if err != nil {
		return 0, err
	}
	return uint(d / time.Second), nil
}

// Validate checks the gateway settings
func (c GatewayConfig) Validate() error {
	return Validate(
		func() ValidationErrors {
			return CollectErrors(
				RequireOneOf("GATE_DEVICE_STORE", c.DeviceStore, []string{StorePostgres, StoreMemory}),
				RequireOneOf("GATE_SESSION_STORE", c.SessionStore, []string{StoreBolt, StoreMemory}),
				RequireDuration("GATE_TOTP_PERIOD", c.TotpPeriod),
				RequireOneOf("GATE_TOTP_DIGITS", strconv.Itoa(c.TotpDigits), []string{"6", "8"}),
			)
		},
		func() ValidationErrors {
			if c.SessionStore != StoreBolt {
				return nil
			}
			return CollectErrors(RequireNonEmpty("GATE_BOLT_PATH", c.BoltPath))
		},
		func() ValidationErrors {
			period, err := c.TotpPeriodSeconds()
			if err != nil || period > 0 {
				return nil
			}
			return ValidationErrors{{Field: "GATE_TOTP_PERIOD", Message: "must be at least one second"}}
		},
	)
}

// RateLimitConfig throttles the login handshake
type RateLimitConfig struct {
	Enabled          bool `env:"RATELIMIT_LOGIN_ENABLED" env-default:"true"`
	PerUserPerMinute int  `env:"RATELIMIT_LOGIN_PER_USER" env-default:"10"`
	PerIPPerMinute   int  `env:"RATELIMIT_LOGIN_PER_IP" env-default:"30"`
	TrustProxy       bool `env:"RATELIMIT_TRUST_PROXY" env-default:"false"`
}
