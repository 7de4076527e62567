package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	deviceUserID int64
	deviceID     int64
	revokeReason string
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Inspect and revoke enrolled devices",
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's devices, including revoked ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openDeviceStoresOnly(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		devices, err := st.devices.FindByUserIDIncludingInactive(cmd.Context(), deviceUserID)
		if err != nil {
			return err
		}
		return printJSON(devices)
	},
}

var devicesHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the audit history of a device",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openDeviceStoresOnly(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.devices.FindHistory(cmd.Context(), deviceID)
		if err != nil {
			return err
		}
		return printJSON(entries)
	},
}

var devicesRevokeUserCmd = &cobra.Command{
	Use:   "revoke-user",
	Short: "Revoke every active device of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openDeviceStoresOnly(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		count, err := st.devices.RevokeAllByUserID(cmd.Context(), deviceUserID, revokeReason)
		if err != nil {
			return err
		}
		slog.Info("Devices revoked", "userID", deviceUserID, "count", count, "reason", revokeReason)
		fmt.Fprintf(cmd.OutOrStdout(), "revoked %d device(s)\n", count)
		return nil
	},
}

func openDeviceStoresOnly(cmd *cobra.Command) (*stores, error) {
	st := &stores{}
	if err := openDeviceStores(cmd.Context(), st); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	devicesListCmd.Flags().Int64Var(&deviceUserID, "user", 0, "user id")
	devicesListCmd.MarkFlagRequired("user")

	devicesHistoryCmd.Flags().Int64Var(&deviceID, "device", 0, "device id")
	devicesHistoryCmd.MarkFlagRequired("device")

	devicesRevokeUserCmd.Flags().Int64Var(&deviceUserID, "user", 0, "user id")
	devicesRevokeUserCmd.Flags().StringVar(&revokeReason, "reason", "revoked by administrator", "reason recorded in device history")
	devicesRevokeUserCmd.MarkFlagRequired("user")

	devicesCmd.AddCommand(devicesListCmd, devicesHistoryCmd, devicesRevokeUserCmd)
	rootCmd.AddCommand(devicesCmd)
}
