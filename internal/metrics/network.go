// internal/metrics/network.go
package metrics

import (
	"fmt"
	"net"
	"time"
)

// Network reachability methods.
const (
	// NetworkMethodDirect means the coordinator address itself answered
	NetworkMethodDirect = "direct"

	// NetworkMethodInternetProbe means a well-known external address answered
	NetworkMethodInternetProbe = "internet-probe"

	// NetworkMethodInterfaceScan means a non-loopback interface carries a
	// usable address (no traffic was exchanged)
	NetworkMethodInterfaceScan = "interface-scan"
)

// internetProbeAddr is a well-known always-reachable address for the
// last-resort connectivity check.
const internetProbeAddr = "1.1.1.1:53"

// dialProbeTimeout bounds each TCP reachability probe.
const dialProbeTimeout = 2 * time.Second

// Network describes device connectivity.
type Network struct {
	Connected bool   `json:"connected"`
	Method    string `json:"method,omitempty"`
}

// networkChain builds the reachability chain.
// Priority: local interface scan → TCP probe of the coordinator → TCP probe
// of a well-known external address. The scan is first because it is free;
// the dials confirm actual reachability when the scan finds nothing.
func (c *Collector) networkChain() Chain[Network] {
	strategies := []Strategy[Network]{
		{Name: "interface-scan", Try: networkFromInterfaces},
	}
	if c.probeAddr != "" {
		strategies = append(strategies, Strategy[Network]{
			Name: "coordinator-probe",
			Try:  func() (Network, error) { return networkFromDial(c.probeAddr, NetworkMethodDirect) },
		})
	}
	strategies = append(strategies, Strategy[Network]{
		Name: "internet-probe",
		Try:  func() (Network, error) { return networkFromDial(internetProbeAddr, NetworkMethodInternetProbe) },
	})
	return Chain[Network]{
		Metric:     "network",
		Strategies: strategies,
		Default:    Network{Connected: false},
		LogFn:      c.logFn,
	}
}

// Network returns the current connectivity state.
func (c *Collector) Network() Network {
	value, _ := c.networkChain().Collect()
	return value
}

// networkFromInterfaces scans local interfaces for a usable non-loopback
// address.
func networkFromInterfaces() (Network, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return Network{}, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() {
				continue
			}
			return Network{Connected: true, Method: NetworkMethodInterfaceScan}, nil
		}
	}
	return Network{}, fmt.Errorf("no non-loopback interface with a usable address")
}

// networkFromDial confirms reachability with a short-timeout TCP dial.
func networkFromDial(addr, method string) (Network, error) {
	conn, err := net.DialTimeout("tcp", addr, dialProbeTimeout)
	if err != nil {
		return Network{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	conn.Close()
	return Network{Connected: true, Method: method}, nil
}
