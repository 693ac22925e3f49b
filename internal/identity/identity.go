// Package identity establishes who this device is to the coordinator.
//
// The device ID is a short random token generated on first run and persisted
// under the config directory, so the same device re-registers under the same
// name across restarts. A hardware fingerprint (machine ID, DMI UUID, or
// hostname, hashed) is reported alongside it for re-registration support on
// devices where the token file does not survive (e.g., reinstalled apps).
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
)

// tokenFile is the name of the persisted device ID inside the config dir.
const tokenFile = "device_id"

// tokenLen is the length of the generated device token.
const tokenLen = 8

// Identity describes this device. Immutable once constructed; created once
// at process start and read-only for the process lifetime.
type Identity struct {
	// DeviceID is the short persisted token identifying this device
	DeviceID string

	// NodeName is the operator-facing label from the configuration
	NodeName string

	// Platform is the OS/architecture tag (e.g., "linux/arm64")
	Platform string

	// CPUCount is the number of logical CPUs
	CPUCount int

	// Fingerprint is a stable hash of hardware identifiers, empty when none
	// could be gathered
	Fingerprint string
}

// Load returns the device identity, generating and persisting a new token
// under configDir on first run.
func Load(configDir, nodeName string) (*Identity, error) {
	token, err := loadOrCreateToken(configDir)
	if err != nil {
		return nil, err
	}

	fingerprint, _ := MachineFingerprint()

	return &Identity{
		DeviceID:    token,
		NodeName:    nodeName,
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		CPUCount:    logicalCPUs(),
		Fingerprint: fingerprint,
	}, nil
}

// loadOrCreateToken reads the persisted device token, generating a fresh one
// when the file is missing or unusable.
func loadOrCreateToken(configDir string) (string, error) {
	path := filepath.Join(configDir, tokenFile)
	if data, err := os.ReadFile(path); err == nil {
		token := strings.TrimSpace(string(data))
		if len(token) == tokenLen {
			return token, nil
		}
	}

	token := uuid.NewString()[:tokenLen]
	if err := os.WriteFile(path, []byte(token+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to persist device token: %w", err)
	}
	return token, nil
}

// logicalCPUs returns the logical CPU count, preferring the OS view over the
// Go runtime's (which can be capped by GOMAXPROCS in containerized setups).
func logicalCPUs() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// MachineFingerprint returns a stable SHA-256 hash of hardware identifiers.
// The hash is computed from: machineUUID + ":" + hostname. Any identifier
// that cannot be gathered is left empty; an error is returned only when no
// identifying information at all is available.
func MachineFingerprint() (string, error) {
	machineUUID, err := machineUUID()
	if err != nil {
		machineUUID = ""
	}

	hostname, _ := os.Hostname()

	if machineUUID == "" && hostname == "" {
		return "", fmt.Errorf("unable to gather any machine identifiers")
	}

	hash := sha256.Sum256([]byte(machineUUID + ":" + hostname))
	return hex.EncodeToString(hash[:]), nil
}

// machineUUID reads the machine UUID from the operating system.
func machineUUID() (string, error) {
	switch runtime.GOOS {
	case "linux", "android":
		return linuxMachineUUID()
	case "darwin":
		return darwinMachineUUID()
	default:
		return "", fmt.Errorf("no machine UUID source for %s", runtime.GOOS)
	}
}

// linuxMachineUUID reads machine ID from Linux.
// Primary: /etc/machine-id (no root required)
// Fallback: /sys/class/dmi/id/product_uuid (requires root)
func linuxMachineUUID() (string, error) {
	if data, err := os.ReadFile("/etc/machine-id"); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	if data, err := os.ReadFile("/sys/class/dmi/id/product_uuid"); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	return "", fmt.Errorf("could not read machine ID from /etc/machine-id or /sys/class/dmi/id/product_uuid")
}

// darwinMachineUUID reads the platform UUID from macOS using ioreg.
func darwinMachineUUID() (string, error) {
	output, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
	if err != nil {
		return "", fmt.Errorf("failed to run ioreg: %w", err)
	}

	for _, line := range strings.Split(string(output), "\n") {
		if !strings.Contains(line, "IOPlatformUUID") {
			continue
		}
		parts := strings.Split(line, "=")
		if len(parts) >= 2 {
			id := strings.Trim(strings.TrimSpace(parts[1]), `"`)
			if id != "" {
				return id, nil
			}
		}
	}

	return "", fmt.Errorf("IOPlatformUUID not found in ioreg output")
}
