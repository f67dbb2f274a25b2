package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mhartlieb/pincore/internal/hal"
	"github.com/mhartlieb/pincore/internal/liveness"
	"github.com/mhartlieb/pincore/internal/pins"
)

type noopTimer struct{}

func (noopTimer) Arm(time.Duration) {}
func (noopTimer) Feed()             {}
func (noopTimer) Suspend()          {}
func (noopTimer) Resume()           {}
func (noopTimer) Disarm()           {}

type fakeConn struct {
	connected bool
}

func (f fakeConn) IsConnected() bool      { return f.connected }
func (f fakeConn) NetworkName() string    { return "eth0" }
func (f fakeConn) CurrentAddress() string { return "192.168.1.50" }
func (f fakeConn) SignalQuality() int     { return 70 }

func newTestReporter(t *testing.T, conn ConnectivitySource) (*Reporter, *pins.Manager, *liveness.Supervisor) {
	t.Helper()

	logger := zap.NewNop()
	manager := pins.NewManager(hal.NewMemoryDriver(), pins.Options{
		SafePins:     []int{4, 13},
		PWMChannels:  4,
		PWMFrequency: 5000,
	}, logger)

	supervisor := liveness.NewSupervisor(liveness.Config{
		Timeout:              8 * time.Second,
		FeedInterval:         time.Second,
		MaxConsecutiveErrors: 10,
		ErrorCooldown:        5 * time.Second,
	}, noopTimer{}, logger, nil)

	reporter := NewReporter(manager, supervisor, conn, func() ServerInfo {
		return ServerInfo{TCPPort: 8888, UDPPort: 8889, TCPClients: 2}
	})
	return reporter, manager, supervisor
}

func TestDocumentSections(t *testing.T) {
	reporter, manager, supervisor := newTestReporter(t, fakeConn{connected: true})

	require.NoError(t, manager.SetDigital(13, 1))
	supervisor.RegisterError("sample failure")

	doc := reporter.Document()

	assert.True(t, doc.Success)
	assert.Equal(t, "STATUS", doc.Command)

	assert.NotEmpty(t, doc.System.GoVersion)
	assert.Greater(t, doc.System.NumGoroutine, 0)

	assert.True(t, doc.Connectivity.Connected)
	assert.Equal(t, "eth0", doc.Connectivity.Network)
	assert.Equal(t, "192.168.1.50", doc.Connectivity.Address)
	assert.Equal(t, 70, doc.Connectivity.SignalQuality)

	assert.Equal(t, 8888, doc.Server.TCPPort)
	assert.Equal(t, 2, doc.Server.TCPClients)

	require.Len(t, doc.PinStates, 1)
	assert.Equal(t, 13, doc.PinStates[0].Pin)

	assert.Equal(t, 1, doc.Liveness.ErrorCount)
	assert.Equal(t, "sample failure", doc.Liveness.LastError)
}

func TestDocumentJSONUsesLowerCamelKeys(t *testing.T) {
	reporter, _, _ := newTestReporter(t, fakeConn{connected: true})

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(reporter.DocumentJSON()), &raw))

	for _, key := range []string{"success", "command", "system", "connectivity", "server", "pinStates", "liveness"} {
		assert.Contains(t, raw, key)
	}

	system := raw["system"].(map[string]any)
	assert.Contains(t, system, "freeMemory")
	assert.Contains(t, system, "goVersion")
	assert.Contains(t, system, "numGoroutine")

	conn := raw["connectivity"].(map[string]any)
	assert.Contains(t, conn, "signalQuality")
}

func TestDocumentWithoutConnectivitySource(t *testing.T) {
	reporter, _, _ := newTestReporter(t, nil)

	doc := reporter.Document()
	assert.False(t, doc.Connectivity.Connected)
	assert.Empty(t, doc.Connectivity.Network)
}
