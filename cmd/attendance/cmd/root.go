package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile string
	cfg     Config
)

var rootCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Attendance access gate",
	Long: `Decides whether a user may use the attendance scanner from the
presenting device: restriction checks, 1:1 device enrollment and
ECDH session login.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")
}

// loadConfig reads the dotenv file, if any, then binds the environment.
// Variables already set in the process win over the file.
func loadConfig() error {
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	slog.SetDefault(cfg.Log.NewLogger(os.Stdout))
	slog.Debug("Configuration loaded", "envFile", envFile, "deviceStore", cfg.Gateway.DeviceStore,
		"sessionStore", cfg.Gateway.SessionStore)

	if err := cfg.JwtConfig.Validate(); err != nil {
		return err
	}
	return cfg.Gateway.Validate()
}
