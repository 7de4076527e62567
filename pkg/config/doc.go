// Package config provides configuration loading and validation for the
// attendance gate.
//
// Settings come from environment variables bound through cleanenv struct
// tags, which also carry the defaults:
//
//	var gw config.GatewayConfig
//	if err := cleanenv.ReadEnv(&gw); err != nil {
//		log.Fatal(err)
//	}
//	if err := gw.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// Durations accept ISO-8601 ("PT30S", "PT2H") as well as Go duration
// strings ("30s").
//
// Validation errors are collected rather than returned one at a time:
//
//	err := config.Validate(func() config.ValidationErrors {
//		return config.CollectErrors(
//			config.RequireNonEmpty("GATE_PG_HOST", host),
//			config.RequireValidPort("GATE_PG_PORT", port),
//		)
//	})
package config
