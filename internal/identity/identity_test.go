package identity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadGeneratesToken(t *testing.T) {
	dir := t.TempDir()

	id, err := Load(dir, "test-node")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(id.DeviceID) != tokenLen {
		t.Errorf("DeviceID = %q, want %d characters", id.DeviceID, tokenLen)
	}
	if id.NodeName != "test-node" {
		t.Errorf("NodeName = %q, want test-node", id.NodeName)
	}
	if !strings.Contains(id.Platform, "/") {
		t.Errorf("Platform = %q, want os/arch tag", id.Platform)
	}
	if id.CPUCount < 1 {
		t.Errorf("CPUCount = %d, want at least 1", id.CPUCount)
	}
}

func TestLoadPersistsToken(t *testing.T) {
	dir := t.TempDir()

	first, err := Load(dir, "node")
	if err != nil {
		t.Fatalf("first Load() error = %v", err)
	}
	second, err := Load(dir, "node")
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}

	if first.DeviceID != second.DeviceID {
		t.Errorf("token not stable across loads: %q != %q", first.DeviceID, second.DeviceID)
	}

	data, err := os.ReadFile(filepath.Join(dir, tokenFile))
	if err != nil {
		t.Fatalf("token file not written: %v", err)
	}
	if strings.TrimSpace(string(data)) != first.DeviceID {
		t.Errorf("token file = %q, want %q", strings.TrimSpace(string(data)), first.DeviceID)
	}
}

func TestLoadReplacesCorruptToken(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, tokenFile), []byte("bad"), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := Load(dir, "node")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(id.DeviceID) != tokenLen {
		t.Errorf("DeviceID = %q, want regenerated %d-char token", id.DeviceID, tokenLen)
	}
	if id.DeviceID == "bad" {
		t.Error("corrupt token was kept")
	}
}

func TestMachineFingerprintStable(t *testing.T) {
	first, err := MachineFingerprint()
	if err != nil {
		t.Skipf("no machine identifiers available: %v", err)
	}
	second, _ := MachineFingerprint()

	if first != second {
		t.Errorf("fingerprint not stable: %q != %q", first, second)
	}
	if len(first) != 64 {
		t.Errorf("fingerprint = %q, want 64 hex characters", first)
	}
}
