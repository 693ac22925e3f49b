// internal/metrics/probe.go
package metrics

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// commandTimeout bounds every external command probe. A hung helper (adb
// shell commands are notorious for this) fails its strategy instead of
// stalling the sampling cycle.
const commandTimeout = 3 * time.Second

// runCommand executes an external probe command and returns its trimmed
// stdout, failing if the command is missing, errors, or exceeds the timeout.
func runCommand(name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, name, args...).Output()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%s timed out after %s", name, commandTimeout)
	}
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", name, err)
	}
	return strings.TrimSpace(string(output)), nil
}

// readProbeFile reads a small introspection file (procfs/sysfs style),
// returning its trimmed contents.
func readProbeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
