// Package connectivity watches the device's network attachment. It is a
// boundary collaborator: the core consumes its snapshot for STATUS
// rendering and never initiates or retries connections itself.
package connectivity

import (
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mhartlieb/pincore/internal/config"
	"go.uber.org/zap"
)

// Feeder is the slice of the liveness supervisor the monitor needs while
// waiting out a connection attempt.
type Feeder interface {
	Feed()
}

// Monitor tracks the attachment state of one network interface. State is
// refreshed at the configured check interval from the monitor's own Poll;
// the getters only read the cached snapshot.
type Monitor struct {
	mu     sync.Mutex
	cfg    config.ConnectivityConfig
	logger *zap.Logger

	connected bool
	ifaceName string
	address   string
	quality   int
	lastCheck time.Time
}

func NewMonitor(cfg config.ConnectivityConfig, logger *zap.Logger) *Monitor {
	return &Monitor{cfg: cfg, logger: logger}
}

// WaitForLink blocks until the interface has an address or the configured
// connect timeout passes, feeding the supervisor on every poll so the
// watchdog deadline is never tripped by a slow network attach.
func (m *Monitor) WaitForLink(feeder Feeder) bool {
	deadline := time.Now().Add(m.cfg.ConnectTimeout)

	for time.Now().Before(deadline) {
		m.refresh()
		if m.IsConnected() {
			m.logger.Info("Network link established",
				zap.String("interface", m.ifaceName),
				zap.String("address", m.address))
			return true
		}
		feeder.Feed()
		time.Sleep(100 * time.Millisecond)
	}

	m.logger.Warn("Network link not established within timeout",
		zap.Duration("timeout", m.cfg.ConnectTimeout))
	return false
}

// Poll refreshes the cached snapshot if the check interval has elapsed.
// Called once per control-loop iteration.
func (m *Monitor) Poll() {
	m.mu.Lock()
	due := time.Since(m.lastCheck) >= m.cfg.CheckInterval
	m.mu.Unlock()

	if due {
		m.refresh()
	}
}

func (m *Monitor) refresh() {
	name, addr := m.findAddress()

	m.mu.Lock()
	wasConnected := m.connected
	m.connected = addr != ""
	m.ifaceName = name
	m.address = addr
	m.quality = m.readLinkQuality(name)
	m.lastCheck = time.Now()
	connected := m.connected
	m.mu.Unlock()

	if wasConnected && !connected {
		m.logger.Warn("Network link lost")
	} else if !wasConnected && connected {
		m.logger.Info("Network link up",
			zap.String("interface", name),
			zap.String("address", addr))
	}
}

// findAddress returns the first global unicast IPv4 address, preferring the
// configured interface when one is named.
func (m *Monitor) findAddress() (string, string) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", ""
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if m.cfg.Interface != "" && iface.Name != m.cfg.Interface {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil || !ip.IsGlobalUnicast() {
				continue
			}
			return iface.Name, ip.String()
		}
	}
	return "", ""
}

// readLinkQuality parses /proc/net/wireless for the interface's link
// quality. Wired or unknown interfaces report 0.
func (m *Monitor) readLinkQuality(iface string) int {
	if iface == "" {
		return 0
	}

	data, err := os.ReadFile("/proc/net/wireless")
	if err != nil {
		return 0
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || !strings.HasPrefix(fields[0], iface) {
			continue
		}
		quality, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return 0
		}
		return int(quality)
	}
	return 0
}

func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Monitor) NetworkName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return "Not connected"
	}
	return m.ifaceName
}

func (m *Monitor) CurrentAddress() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return "0.0.0.0"
	}
	return m.address
}

func (m *Monitor) SignalQuality() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quality
}
