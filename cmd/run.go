// cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driftnet-io/drift-agent/internal/config"
	"github.com/driftnet-io/drift-agent/internal/identity"
	"github.com/driftnet-io/drift-agent/internal/metrics"
	"github.com/driftnet-io/drift-agent/internal/session"
	"github.com/driftnet-io/drift-agent/internal/snapshot"
)

var (
	runCoordinatorURL string
	runNodeName       string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the drift agent and stream resource state to the coordinator",
	Long: `This is a long-running command that connects to the Driftnet coordinator,
registers this device, and streams resource heartbeats until interrupted. It
reconnects with bounded backoff on any network failure and should typically
be run as a background service.`,
	Example: `  # Run against a coordinator
  drift run --coordinator ws://192.168.100.2:5000

  # Use the coordinator from agent.yaml
  drift run`,
	Run: runAgent,
}

func runAgent(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if runCoordinatorURL != "" {
		cfg.CoordinatorURL = runCoordinatorURL
	}
	if runNodeName != "" {
		cfg.NodeName = runNodeName
	}
	cfg.Debug = cfg.Debug || debugMode

	// Misconfiguration is the one fault the agent must not retry forever
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Invalid configuration: %v\n", err)
		fmt.Fprintln(os.Stderr, "   Run 'drift init' or set --coordinator to fix this.")
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

	transport, err := session.NewWebSocketTransport(cfg.CoordinatorURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Cannot construct transport: %v\n", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector(metrics.CollectorConfig{
		DataPath:  cfg.DataPath,
		ProbeAddr: cfg.ResolveProbeAddr(),
		CPUCount:  id.CPUCount,
		LogFn:     agentLog,
	})

	sess := session.New(session.Config{
		HeartbeatInterval: cfg.HeartbeatInterval,
		AckTimeout:        cfg.AckTimeout,
		BackoffBase:       cfg.BackoffBase,
		BackoffMax:        cfg.BackoffMax,
		LogFn:             agentLog,
	}, id, snapshot.NewBuilder(collector), transport)

	fmt.Println("--- 🚀 Starting Drift Agent ---")
	fmt.Printf("   - Device ID: %s\n", id.DeviceID)
	fmt.Printf("   - Platform: %s (%d CPUs)\n", id.Platform, id.CPUCount)
	fmt.Printf("   - Coordinator: %s\n", cfg.CoordinatorURL)
	fmt.Printf("   - Heartbeat cadence: %s\n", cfg.HeartbeatInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = sess.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "❌ Agent stopped: %v\n", err)
		os.Exit(1)
	}

	stats := sess.Stats()
	fmt.Println("\n--- 🛑 Shutting down agent ---")
	fmt.Printf("   - Heartbeats sent: %d\n", stats.HeartbeatsSent)
	fmt.Println("   - ✅ Agent stopped.")
}

// agentLog routes session and collector messages to the console, honoring
// debug mode for the chatty levels.
func agentLog(level, msg string) {
	switch level {
	case "debug":
		Debug("%s", msg)
	case "warning", "error":
		fmt.Fprintf(os.Stderr, "   - ⚠️ %s\n", msg)
	default:
		fmt.Printf("   - %s\n", msg)
	}
}

func init() {
	runCmd.Flags().StringVar(&runCoordinatorURL, "coordinator", "", "Coordinator WebSocket URL (overrides agent.yaml)")
	runCmd.Flags().StringVar(&runNodeName, "name", "", "Node name reported to the coordinator")
	rootCmd.AddCommand(runCmd)
}
