package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/netpulse/internal/telemetry"
	"github.com/user/netpulse/internal/types"
)

func init() {
	rootCmd.AddCommand(telemetryCmd)
	telemetryCmd.AddCommand(telemetryAddCmd, telemetryListCmd)

	telemetryAddCmd.Flags().String("device", "", "device identifier (required)")
	telemetryAddCmd.Flags().Float64("ping-avg", 0, "average ping in ms")
	telemetryAddCmd.Flags().Float64("ping-jitter", 0, "ping jitter in ms")
	telemetryAddCmd.Flags().Float64("packet-loss", 0, "packet loss fraction 0..1")
	telemetryAddCmd.Flags().Float64("wifi", 0, "wifi signal strength in dBm")
	telemetryAddCmd.Flags().Float64("cpu-temp", 0, "CPU temperature in C")
	telemetryAddCmd.Flags().Float64("cpu-load", 0, "CPU load average")
	telemetryAddCmd.Flags().Float64("motion", 0, "motion sensor level")
	telemetryAddCmd.Flags().Float64("ambient-temp", 0, "ambient temperature in C")
	telemetryAddCmd.Flags().Float64("humidity", 0, "relative humidity percent")
	_ = telemetryAddCmd.MarkFlagRequired("device")

	telemetryListCmd.Flags().String("device", "", "filter by device")
	telemetryListCmd.Flags().Int("limit", 20, "maximum samples to show")
}

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Upload and inspect telemetry samples",
}

var telemetryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a telemetry sample",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		device, _ := cmd.Flags().GetString("device")
		pingAvg, _ := cmd.Flags().GetFloat64("ping-avg")
		pingJitter, _ := cmd.Flags().GetFloat64("ping-jitter")
		packetLoss, _ := cmd.Flags().GetFloat64("packet-loss")
		wifi, _ := cmd.Flags().GetFloat64("wifi")
		cpuTemp, _ := cmd.Flags().GetFloat64("cpu-temp")
		cpuLoad, _ := cmd.Flags().GetFloat64("cpu-load")
		motion, _ := cmd.Flags().GetFloat64("motion")
		ambient, _ := cmd.Flags().GetFloat64("ambient-temp")
		humidity, _ := cmd.Flags().GetFloat64("humidity")

		_, _, samples, err := openStores()
		if err != nil {
			return err
		}

		sample := &types.TelemetrySample{
			DeviceID:     device,
			PingAvg:      pingAvg,
			PingJitter:   pingJitter,
			PacketLoss:   packetLoss,
			WifiStrength: wifi,
			CPUTemp:      cpuTemp,
			CPULoad:      cpuLoad,
			MotionLevel:  motion,
			AmbientTemp:  ambient,
			Humidity:     humidity,
		}
		if err := samples.Insert(context.Background(), sample); err != nil {
			return fmt.Errorf("add sample: %w", err)
		}

		category := telemetry.Categorize(sample)
		fmt.Fprintf(os.Stdout, "Sample %s added (category when classified: %s).\n", sample.ID, category)
		return nil
	},
}

var telemetryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent telemetry samples",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		device, _ := cmd.Flags().GetString("device")
		limit, _ := cmd.Flags().GetInt("limit")

		_, _, samples, err := openStores()
		if err != nil {
			return err
		}
		recs, err := samples.Recent(context.Background(), device, limit)
		if err != nil {
			return fmt.Errorf("list samples: %w", err)
		}

		if len(recs) == 0 {
			fmt.Println("No telemetry samples.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tDEVICE\tPING\tJITTER\tLOSS\tWIFI\tCPU_TEMP\tCATEGORY")
		for _, s := range recs {
			category := s.Category
			if category == "" {
				category = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%.2f\t%.0f\t%.1f\t%s\n",
				s.Timestamp.Format(time.RFC3339),
				s.DeviceID,
				s.PingAvg,
				s.PingJitter,
				s.PacketLoss,
				s.WifiStrength,
				s.CPUTemp,
				category,
			)
		}
		return w.Flush()
	},
}
