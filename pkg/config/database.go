package config

import (
	"net"
	"net/url"
	"strconv"
)

// DatabaseConfig holds PostgreSQL database configuration
type DatabaseConfig struct {
	Host     string `env:"GATE_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"GATE_PG_PORT" env-default:"5432"`
	Database string `env:"GATE_PG_DATABASE" env-default:"attendance_db"`
	User     string `env:"GATE_PG_USER" env-default:"attendance"`
	Password string `env:"GATE_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"GATE_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL
func (d DatabaseConfig) ToDatabaseURL() string {
	q := url.Values{}
	q.Set("sslmode", "disable")
	q.Set("search_path", d.Schema+",public")
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(int(d.Port))),
		Path:     "/" + d.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Validate checks the connection settings
func (d DatabaseConfig) Validate() error {
	return Validate(func() ValidationErrors {
		return CollectErrors(
			RequireNonEmpty("GATE_PG_HOST", d.Host),
			RequireValidPort("GATE_PG_PORT", d.Port),
			RequireNonEmpty("GATE_PG_DATABASE", d.Database),
			RequireNonEmpty("GATE_PG_USER", d.User),
		)
	})
}
