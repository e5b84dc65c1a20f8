package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/huanfeng/pkgscope/internal/device"
	"github.com/huanfeng/pkgscope/pkg/models"
)

var devicesOutput string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected devices and their ABIs",
	Long: `List Android devices visible to adb together with their API level and
ABI list. Pass a serial to --device on analyse or scan to pick native code
for that device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		adb := device.NewADB(cfg.Analysis.ADBPath)
		devices, err := adb.Devices(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list devices: %w", err)
		}

		serials := make([]string, len(devices))
		byserial := make(map[string]device.Device, len(devices))
		for i, d := range devices {
			serials[i] = d.Serial
			byserial[d.Serial] = d
		}

		mgr := device.NewManager[device.Device]()
		results := mgr.Run(cmd.Context(), serials, func(ctx context.Context, serial string) (device.Device, error) {
			return adb.Describe(ctx, byserial[serial])
		})
		for i, r := range results {
			devices[i] = r.Value
			if r.Value.Serial == "" {
				devices[i] = byserial[r.Serial]
			}
			if r.Err != nil {
				logger.Debug("%s: %v", r.Serial, r.Err)
			}
		}

		structured, err := writeStructured(os.Stdout, devicesOutput, devices)
		if err != nil || structured {
			return err
		}
		if len(devices) == 0 {
			fmt.Fprintln(os.Stderr, device.ErrNoDevice)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SERIAL\tSTATE\tMODEL\tAPI\tABIS")
		for _, d := range devices {
			api := "-"
			if d.AndroidAPI > 0 {
				api = fmt.Sprint(d.AndroidAPI)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Serial, d.State, dash(d.Model), api, dash(joinArchs(d.ABIs)))
		}
		return w.Flush()
	},
}

func joinArchs(archs []models.Architecture) string {
	names := make([]string, len(archs))
	for i, a := range archs {
		names[i] = string(a)
	}
	return strings.Join(names, ",")
}

func init() {
	devicesCmd.Flags().StringVarP(&devicesOutput, "output", "o", "text", "output format")
	rootCmd.AddCommand(devicesCmd)
}
