// Package discovery advertises the agent on the local network over mDNS.
package discovery

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/SimplyPrint/nfc-tagid/internal/logging"
	"github.com/grandcat/zeroconf"
)

const (
	ServiceType = "_nfc-tagid._tcp"
	Domain      = "local."
	// WebSocketPath is advertised so clients can connect without guessing.
	WebSocketPath = "/v1/ws"
)

type registration interface {
	Shutdown()
}

// register is replaced in tests.
var register = func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (registration, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces)
}

// Advertiser holds a live mDNS registration.
type Advertiser struct {
	mu       sync.Mutex
	server   registration
	instance string
	port     int
}

// InstanceName returns the service instance name for this host.
func InstanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "NFC Tag ID"
	}
	return fmt.Sprintf("NFC Tag ID (%s)", host)
}

// TXTRecords returns the TXT entries published with the service.
func TXTRecords(version string) []string {
	return []string{
		"version=" + version,
		"protocol=websocket",
		"path=" + WebSocketPath,
	}
}

// Start registers the service on port.
func Start(port int, version string) (*Advertiser, error) {
	instance := InstanceName()
	server, err := register(instance, ServiceType, Domain, port, TXTRecords(version), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info(logging.CatDiscovery, "mDNS service registered", map[string]any{
		"instance": instance,
		"service":  ServiceType,
		"port":     port,
	})

	return &Advertiser{server: server, instance: instance, port: port}, nil
}

// Shutdown withdraws the advertisement. Safe to call more than once.
func (a *Advertiser) Shutdown() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	logging.Info(logging.CatDiscovery, "mDNS service stopped", map[string]any{
		"instance": a.instance,
	})
}
