package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/pquerna/otp"
	"github.com/spf13/cobra"
	"github.com/tendant/attendance-gate/pkg/access"
	accessapi "github.com/tendant/attendance-gate/pkg/access/api"
	"github.com/tendant/attendance-gate/pkg/client"
	pkgconfig "github.com/tendant/attendance-gate/pkg/config"
	"github.com/tendant/attendance-gate/pkg/device"
	"github.com/tendant/attendance-gate/pkg/enrollment"
	enrollmentapi "github.com/tendant/attendance-gate/pkg/enrollment/api"
	"github.com/tendant/attendance-gate/pkg/handshake"
	"github.com/tendant/attendance-gate/pkg/login"
	loginapi "github.com/tendant/attendance-gate/pkg/login/api"
	"github.com/tendant/attendance-gate/pkg/policy"
	"github.com/tendant/attendance-gate/pkg/ratelimit"
	"github.com/tendant/attendance-gate/pkg/sessionkey"
	"github.com/tendant/chi-demo/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the access gate HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		prefixes := pkgconfig.NewPrefixConfigFromEnv()
		if err := prefixes.Validate(); err != nil {
			return err
		}

		st, err := openStores(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if st.pool != nil {
			if err := applySchema(cmd.Context(), st.pool); err != nil {
				return err
			}
		}

		hkdf, err := newHkdfService(cfg.Gateway)
		if err != nil {
			return err
		}

		orchestrator := enrollment.NewFlowOrchestrator(st.devices)
		policyService := policy.NewOneToOneService(st.devices)
		completion := enrollment.NewCompletionService(st.devices, policyService)
		gateway := access.NewGatewayService(st.restrictions, orchestrator, sessionkey.NewActiveSessionQuery(st.sessionKeys))
		ecdhLogin := login.NewEcdhUseCase(st.devices, st.sessionKeys, handshake.NewEcdhService(), hkdf)
		logout := login.NewLogoutUseCase(st.devices, st.sessionKeys)

		tokenAuth := jwtauth.New("HS256", []byte(cfg.JwtConfig.Secret), nil)

		server := app.DefaultApp()
		app.RegisterHealthzRoutes(server.R)

		server.R.Group(func(r chi.Router) {
			r.Use(client.Verifier(tokenAuth))
			r.Use(client.AuthUserMiddleware)

			r.Mount(prefixes.Access, accessapi.Handler(accessapi.NewHandle(gateway)))
			r.Mount(prefixes.Enrollment, enrollmentapi.Handler(enrollmentapi.NewHandle(orchestrator, completion)))
			loginRoutes := loginapi.Handler(loginapi.NewHandle(ecdhLogin, logout))
			if cfg.RateLimit.Enabled {
				limiter := ratelimit.NewMiddleware(ratelimit.Config{
					PerIPEnabled:      cfg.RateLimit.PerIPPerMinute > 0,
					PerIP:             ratelimit.PerMinute(cfg.RateLimit.PerIPPerMinute),
					PerUserEnabled:    cfg.RateLimit.PerUserPerMinute > 0,
					PerUser:           ratelimit.PerMinute(cfg.RateLimit.PerUserPerMinute),
					TrustProxyHeaders: cfg.RateLimit.TrustProxy,
					BucketTTL:         time.Hour,
				})
				go limiter.RunSweeper(cmd.Context(), 10*time.Minute)
				loginRoutes = limiter.Handler(loginRoutes)
			}
			r.Mount(prefixes.Login, loginRoutes)
		})

		slog.Info("Routes mounted", "access", prefixes.Access, "enrollment", prefixes.Enrollment,
			"login", prefixes.Login, "fingerprintHeader", device.FingerprintHeader)

		server.Run()
		return nil
	},
}

func newHkdfService(gw pkgconfig.GatewayConfig) (*handshake.HkdfService, error) {
	period, err := gw.TotpPeriodSeconds()
	if err != nil {
		return nil, fmt.Errorf("invalid TOTP period: %w", err)
	}
	return handshake.NewHkdfService(handshake.WithTotpOptions(handshake.TotpOptions{
		Digits: otp.Digits(gw.TotpDigits),
		Period: period,
		Skew:   gw.TotpSkew,
	})), nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
