// cmd/status.go
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/driftnet-io/drift-agent/internal/config"
	"github.com/driftnet-io/drift-agent/internal/identity"
	"github.com/driftnet-io/drift-agent/internal/metrics"
	"github.com/driftnet-io/drift-agent/internal/snapshot"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
	noColor     bool // Flag to disable color
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st", "info"},
	Short:   "Shows a one-shot resource snapshot of this device",
	Long: `Builds a resource snapshot using the same collectors the streaming agent
uses — CPU availability, RAM, battery, storage, and network reachability —
and prints it, without connecting to the coordinator.`,
	Example: `  # View the current snapshot with colors
  drift status

  # View the snapshot without colors (for scripts/logging)
  drift status --no-color`,
	Run: func(cmd *cobra.Command, args []string) {
		// Handle the --no-color flag
		if noColor {
			color.NoColor = true
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		configDir, err := config.Dir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to prepare config directory: %v\n", err)
			os.Exit(1)
		}
		id, err := identity.Load(configDir, cfg.NodeName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ Failed to establish device identity: %v\n", err)
			os.Exit(1)
		}

		collector := metrics.NewCollector(metrics.CollectorConfig{
			DataPath:  cfg.DataPath,
			ProbeAddr: cfg.ResolveProbeAddr(),
			CPUCount:  id.CPUCount,
			LogFn:     agentLog,
		})
		snap := snapshot.NewBuilder(collector).Build()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		defer w.Flush()

		headerColor.Fprintf(w, "--- 📊 Drift Device Snapshot (%s) ---\n", Version)

		headerColor.Fprintln(w, "\n🪪 IDENTITY")
		labelColor.Fprint(w, "Device ID:\t")
		fmt.Fprintln(w, id.DeviceID)
		labelColor.Fprint(w, "Platform:\t")
		fmt.Fprintf(w, "%s (%d CPUs)\n", id.Platform, id.CPUCount)

		headerColor.Fprintln(w, "\n💻 SYSTEM VITALS")
		labelColor.Fprint(w, "CPU Free:\t")
		percentColor(snap.CPUFreePercent).Fprintf(w, "%.1f%%\n", snap.CPUFreePercent)
		labelColor.Fprint(w, "RAM:\t")
		fmt.Fprintf(w, "%d MB free of %d MB (", snap.RAMFreeMB, snap.RAMTotalMB)
		percentColor(100 - snap.RAMUsedPercent).Fprintf(w, "%.2f%% used", snap.RAMUsedPercent)
		fmt.Fprintln(w, ")")

		headerColor.Fprintln(w, "\n🔋 POWER")
		labelColor.Fprint(w, "Battery:\t")
		fmt.Fprintf(w, "%d%% (%s, via %s)\n", snap.Battery.Percent, snap.Battery.Status, snap.Battery.Source)

		headerColor.Fprintln(w, "\n💾 STORAGE")
		labelColor.Fprint(w, "Data partition:\t")
		fmt.Fprintf(w, "%.1f GB free of %.1f GB (", snap.Storage.FreeGB, snap.Storage.TotalGB)
		percentColor(100 - snap.Storage.UsedPercent).Fprintf(w, "%.1f%% used", snap.Storage.UsedPercent)
		fmt.Fprintln(w, ")")

		headerColor.Fprintln(w, "\n🌐 NETWORK")
		labelColor.Fprint(w, "Connected:\t")
		if snap.Network.Connected {
			goodColor.Fprintf(w, "yes (%s)\n", snap.Network.Method)
		} else {
			badColor.Fprintln(w, "no")
		}
	},
}

// percentColor grades a free-percentage: plenty is green, tight is yellow,
// nearly exhausted is red.
func percentColor(freePercent float64) *color.Color {
	switch {
	case freePercent >= 40:
		return goodColor
	case freePercent >= 15:
		return warnColor
	default:
		return badColor
	}
}

func init() {
	statusCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.AddCommand(statusCmd)
}
