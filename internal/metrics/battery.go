// internal/metrics/battery.go
package metrics

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Battery charge status values.
const (
	BatteryCharging    = "charging"
	BatteryDischarging = "discharging"
	BatteryFull        = "full"
	BatteryUnknown     = "unknown"
)

// Battery measurement sources, recorded so the coordinator can judge how
// trustworthy the reading is.
const (
	BatterySourceAPI        = "api"
	BatterySourceSystemDump = "system-dump"
	BatterySourceSysfs      = "sysfs"
	BatterySourceProbe      = "power-supply-probe"
	BatterySourceUnknown    = "unknown"
)

// Battery describes the device battery state. Devices without a battery
// report the default, which consumers treat as "no power constraint" rather
// than "full".
type Battery struct {
	Percent int    `json:"percent"`
	Status  string `json:"status"`
	Source  string `json:"source"`
}

// DefaultBattery is reported when no battery strategy works.
func DefaultBattery() Battery {
	return Battery{Percent: 100, Status: BatteryUnknown, Source: BatterySourceUnknown}
}

// batteryChain builds the battery chain.
// Priority: termux helper → dumpsys text dump → sysfs battery dirs →
// charging-indicator-only probe.
func (c *Collector) batteryChain() Chain[Battery] {
	return Chain[Battery]{
		Metric: "battery",
		Strategies: []Strategy[Battery]{
			{Name: "termux-api", Try: batteryFromTermux},
			{Name: "dumpsys", Try: batteryFromDumpsys},
			{Name: "sysfs", Try: batteryFromSysfs},
			{Name: "power-supply-online", Try: batteryFromChargingIndicator},
		},
		Default: DefaultBattery(),
		LogFn:   c.logFn,
	}
}

// Battery returns the current battery state.
func (c *Collector) Battery() Battery {
	value, _ := c.batteryChain().Collect()
	return value
}

// batteryFromTermux uses the termux-battery-status helper, which emits JSON
// on Termux installs with the API addon.
func batteryFromTermux() (Battery, error) {
	output, err := runCommand("termux-battery-status")
	if err != nil {
		return Battery{}, err
	}
	return parseTermuxBattery(output)
}

func parseTermuxBattery(output string) (Battery, error) {
	var payload struct {
		Percentage int    `json:"percentage"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal([]byte(output), &payload); err != nil {
		return Battery{}, fmt.Errorf("bad termux-battery-status output: %w", err)
	}
	status := BatteryUnknown
	switch strings.ToUpper(payload.Status) {
	case "CHARGING":
		status = BatteryCharging
	case "DISCHARGING", "NOT_CHARGING":
		status = BatteryDischarging
	case "FULL":
		status = BatteryFull
	}
	return Battery{Percent: payload.Percentage, Status: status, Source: BatterySourceAPI}, nil
}

// batteryFromDumpsys parses the Android battery service text dump. Works on
// adb-accessible devices where the termux helper is absent.
func batteryFromDumpsys() (Battery, error) {
	output, err := runCommand("dumpsys", "battery")
	if err != nil {
		return Battery{}, err
	}
	return parseDumpsysBattery(output)
}

func parseDumpsysBattery(output string) (Battery, error) {
	battery := Battery{Percent: -1, Status: BatteryUnknown, Source: BatterySourceSystemDump}
	for _, line := range strings.Split(output, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "level":
			if level, err := strconv.Atoi(value); err == nil {
				battery.Percent = level
			}
		case "status":
			// BatteryManager constants: 2=charging, 3=discharging,
			// 4=not charging, 5=full
			switch value {
			case "2":
				battery.Status = BatteryCharging
			case "3", "4":
				battery.Status = BatteryDischarging
			case "5":
				battery.Status = BatteryFull
			}
		}
	}
	if battery.Percent < 0 {
		return Battery{}, fmt.Errorf("no level field in dumpsys battery output")
	}
	return battery, nil
}

// batteryFromSysfs probes /sys/class/power_supply/BAT* directly.
func batteryFromSysfs() (Battery, error) {
	dirs, err := filepath.Glob("/sys/class/power_supply/BAT*")
	if err != nil || len(dirs) == 0 {
		return Battery{}, fmt.Errorf("no sysfs battery directory")
	}
	for _, dir := range dirs {
		capacity, err := readProbeFile(filepath.Join(dir, "capacity"))
		if err != nil {
			continue
		}
		percent, err := strconv.Atoi(capacity)
		if err != nil {
			continue
		}
		status := BatteryUnknown
		if raw, err := readProbeFile(filepath.Join(dir, "status")); err == nil {
			switch strings.ToLower(raw) {
			case "charging":
				status = BatteryCharging
			case "discharging", "not charging":
				status = BatteryDischarging
			case "full":
				status = BatteryFull
			}
		}
		return Battery{Percent: percent, Status: status, Source: BatterySourceSysfs}, nil
	}
	return Battery{}, fmt.Errorf("no readable sysfs battery")
}

// batteryFromChargingIndicator is the last resort: an AC/USB online flag
// tells us charging state but not charge level, so the level stays at the
// no-constraint sentinel.
func batteryFromChargingIndicator() (Battery, error) {
	paths, err := filepath.Glob("/sys/class/power_supply/*/online")
	if err != nil || len(paths) == 0 {
		return Battery{}, fmt.Errorf("no power-supply online indicator")
	}
	for _, path := range paths {
		raw, err := readProbeFile(path)
		if err != nil {
			continue
		}
		status := BatteryDischarging
		if raw == "1" {
			status = BatteryCharging
		}
		return Battery{Percent: 100, Status: status, Source: BatterySourceProbe}, nil
	}
	return Battery{}, fmt.Errorf("no readable online indicator")
}
