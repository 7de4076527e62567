package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	pkgconfig "github.com/tendant/attendance-gate/pkg/config"
)

var (
	restrictUserID int64
	restrictReason string
	restrictFor    string
)

var restrictionsCmd = &cobra.Command{
	Use:   "restrictions",
	Short: "Block and unblock users",
}

var restrictionsBlockCmd = &cobra.Command{
	Use:   "block",
	Short: "Block a user, optionally for a limited time",
	RunE: func(cmd *cobra.Command, args []string) error {
		var until *time.Time
		if restrictFor != "" {
			d, err := pkgconfig.ParseDuration(restrictFor)
			if err != nil {
				return fmt.Errorf("invalid --for: %w", err)
			}
			t := time.Now().UTC().Add(d)
			until = &t
		}

		st, err := openDeviceStoresOnly(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.restrictions.Block(cmd.Context(), restrictUserID, restrictReason, until); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %d blocked\n", restrictUserID)
		return nil
	},
}

var restrictionsUnblockCmd = &cobra.Command{
	Use:   "unblock",
	Short: "Lift a user's restriction",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openDeviceStoresOnly(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.restrictions.Unblock(cmd.Context(), restrictUserID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %d unblocked\n", restrictUserID)
		return nil
	},
}

func init() {
	restrictionsBlockCmd.Flags().Int64Var(&restrictUserID, "user", 0, "user id")
	restrictionsBlockCmd.Flags().StringVar(&restrictReason, "reason", "", "message shown to the user")
	restrictionsBlockCmd.Flags().StringVar(&restrictFor, "for", "", "block duration, e.g. P7D or 24h; empty blocks indefinitely")
	restrictionsBlockCmd.MarkFlagRequired("user")

	restrictionsUnblockCmd.Flags().Int64Var(&restrictUserID, "user", 0, "user id")
	restrictionsUnblockCmd.MarkFlagRequired("user")

	restrictionsCmd.AddCommand(restrictionsBlockCmd, restrictionsUnblockCmd)
	rootCmd.AddCommand(restrictionsCmd)
}
