package cmd

import (
	pkgconfig "github.com/tendant/attendance-gate/pkg/config"
	"github.com/tendant/chi-demo/app"
)

const defaultJwtSecret = "very-secure-jwt-secret"

type JwtConfig struct {
	Secret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}

// Validate rejects the built-in secret and short secrets in production
func (c JwtConfig) Validate() error {
	if !pkgconfig.IsProduction() {
		return nil
	}
	return pkgconfig.Validate(func() pkgconfig.ValidationErrors {
		errs := pkgconfig.CollectErrors(pkgconfig.RequireMinLength("JWT_SECRET", c.Secret, 32))
		if c.Secret == defaultJwtSecret {
			errs = append(errs, pkgconfig.ValidationError{Field: "JWT_SECRET", Message: "must be changed in production"})
		}
		return errs
	})
}

type Config struct {
	DatabaseConfig pkgconfig.DatabaseConfig
	AppConfig      app.AppConfig
	JwtConfig      JwtConfig
	Gateway        pkgconfig.GatewayConfig
	Log            pkgconfig.LogConfig
	RateLimit      pkgconfig.RateLimitConfig
}
