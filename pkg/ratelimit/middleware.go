package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/attendance-gate/pkg/client"
	apperrors "github.com/tendant/attendance-gate/pkg/errors"
)

// Limit is a burst capacity with a sustained refill rate in requests per second
type Limit struct {
	Capacity   int
	RefillRate float64
}

// PerMinute returns a Limit allowing n requests per minute with a burst of n
func PerMinute(n int) Limit {
	return Limit{Capacity: n, RefillRate: float64(n) / 60.0}
}

// Config holds the limits applied to the login handshake
type Config struct {
	PerIPEnabled   bool
	PerIP          Limit
	PerUserEnabled bool
	PerUser        Limit
	// TrustProxyHeaders keys per-IP buckets on X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
	// BucketTTL is how long idle buckets are kept in memory
	BucketTTL time.Duration
}

// DefaultConfig returns limits suited to the login handshake: a user gets
// 10 handshakes per minute, an address 30.
func DefaultConfig() Config {
	return Config{
		PerIPEnabled:   true,
		PerIP:          PerMinute(30),
		PerUserEnabled: true,
		PerUser:        PerMinute(10),
		BucketTTL:      time.Hour,
	}
}

// Middleware rejects callers that exceed their limit with 429
type Middleware struct {
	config      Config
	ipLimiter   *RateLimiter
	userLimiter *RateLimiter
}

// NewMiddleware creates a rate limiting middleware
func NewMiddleware(config Config) *Middleware {
	m := &Middleware{config: config}
	if config.PerIPEnabled {
		m.ipLimiter = NewRateLimiter(config.PerIP, config.BucketTTL)
	}
	if config.PerUserEnabled {
		m.userLimiter = NewRateLimiter(config.PerUser, config.BucketTTL)
	}
	return m
}

// Handler returns the middleware. It must run after client.AuthUserMiddleware
// for per-user limits to apply.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, m.config.TrustProxyHeaders)
		if m.ipLimiter != nil && ip != "" && !m.ipLimiter.Allow(ip) {
			m.rateLimitExceeded(w, r, "ip", ip)
			return
		}

		if authUser := client.GetAuthUser(r); m.userLimiter != nil && authUser != nil {
			key := strconv.FormatInt(authUser.UserID, 10)
			if !m.userLimiter.Allow(key) {
				m.rateLimitExceeded(w, r, "user", key)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType, key string) {
	slog.Warn("Rate limit exceeded", "type", limitType, "key", key, "path", r.URL.Path)
	w.Header().Set("Retry-After", "60")
	client.RenderError(w, r, apperrors.New(apperrors.ErrCodeRateLimited, "too many requests").
		WithDetail("type", limitType))
}

// RunSweeper drops idle buckets every interval until ctx is done
func (m *Middleware) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, l := range []*RateLimiter{m.ipLimiter, m.userLimiter} {
				if l != nil {
					l.Sweep()
				}
			}
		}
	}
}

// clientIP returns the host part of RemoteAddr. With trustProxy set, the first
// X-Forwarded-For address or X-Real-IP takes precedence.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
