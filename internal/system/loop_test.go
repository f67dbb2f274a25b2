package system

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mhartlieb/pincore/internal/config"
	"github.com/mhartlieb/pincore/internal/connectivity"
	"github.com/mhartlieb/pincore/internal/hal"
	"github.com/mhartlieb/pincore/internal/liveness"
	"github.com/mhartlieb/pincore/internal/netserver"
	"github.com/mhartlieb/pincore/internal/pins"
	"github.com/mhartlieb/pincore/internal/pipeline"
	"github.com/mhartlieb/pincore/internal/protocol"
)

type noopTimer struct{}

func (noopTimer) Arm(time.Duration) {}
func (noopTimer) Feed()             {}
func (noopTimer) Suspend()          {}
func (noopTimer) Resume()           {}
func (noopTimer) Disarm()           {}

func newTestLoop(t *testing.T) (*Loop, *liveness.Supervisor) {
	t.Helper()

	logger := zap.NewNop()

	supervisor := liveness.NewSupervisor(liveness.Config{
		Timeout:              8 * time.Second,
		FeedInterval:         time.Millisecond,
		MaxConsecutiveErrors: 2,
		ErrorCooldown:        time.Minute,
	}, noopTimer{}, logger, nil)

	manager := pins.NewManager(hal.NewMemoryDriver(), pins.Options{
		SafePins:     []int{13},
		PWMChannels:  4,
		PWMFrequency: 5000,
	}, logger)

	monitor := connectivity.NewMonitor(config.ConnectivityConfig{
		ConnectTimeout: time.Second,
		CheckInterval:  time.Hour,
	}, logger)

	loop := NewLoop(supervisor, nil, monitor, nil, nil, 8080, logger)

	pipe := pipeline.New(protocol.NewParser([]int{13}), manager, nil, loop, 2*time.Second, logger)

	server := netserver.New(config.ServerConfig{TCPPort: 0, UDPPort: 0, MaxClients: 1}, pipe, logger)
	require.NoError(t, server.Start())
	t.Cleanup(server.Close)
	loop.SetServer(server)

	return loop, supervisor
}

func runToExit(t *testing.T, loop *Loop) int {
	t.Helper()

	exited := make(chan int, 1)
	loop.exit = func(code int) {
		exited <- code
		// Park the loop goroutine; a real exit never returns.
		select {}
	}

	go loop.Run()

	select {
	case code := <-exited:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not exit")
		return 0
	}
}

func TestRequestedRestartExitsLoop(t *testing.T) {
	loop, _ := newTestLoop(t)

	loop.RequestRestart(0, "requested by test")
	code := runToExit(t, loop)
	assert.Equal(t, 1, code)
}

func TestErrorThresholdExitsLoop(t *testing.T) {
	loop, supervisor := newTestLoop(t)

	supervisor.RegisterError("one")
	supervisor.RegisterError("two")

	code := runToExit(t, loop)
	assert.Equal(t, 1, code)
}

func TestStopEndsLoopWithoutExit(t *testing.T) {
	loop, _ := newTestLoop(t)

	exitCalled := false
	loop.exit = func(int) { exitCalled = true }

	done := make(chan struct{})
	go func() {
		loop.Run()
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	loop.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.False(t, exitCalled)
}

// fakeLink drives the loop's connectivity view directly.
type fakeLink struct {
	mu        sync.Mutex
	connected bool
}

func (f *fakeLink) Poll() {}

func (f *fakeLink) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeLink) CurrentAddress() string {
	if f.IsConnected() {
		return "192.168.1.50"
	}
	return "0.0.0.0"
}

func (f *fakeLink) setConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

func TestReconnectionClearsConsecutiveErrors(t *testing.T) {
	logger := zap.NewNop()

	supervisor := liveness.NewSupervisor(liveness.Config{
		Timeout:              8 * time.Second,
		FeedInterval:         time.Second,
		MaxConsecutiveErrors: 10,
		ErrorCooldown:        time.Minute,
	}, noopTimer{}, logger, nil)

	manager := pins.NewManager(hal.NewMemoryDriver(), pins.Options{
		SafePins:     []int{13},
		PWMChannels:  4,
		PWMFrequency: 5000,
	}, logger)

	link := &fakeLink{}
	loop := NewLoop(supervisor, nil, link, nil, nil, 8080, logger)

	pipe := pipeline.New(protocol.NewParser([]int{13}), manager, nil, loop, 2*time.Second, logger)
	server := netserver.New(config.ServerConfig{TCPPort: 0, UDPPort: 0, MaxClients: 1}, pipe, logger)
	require.NoError(t, server.Start())
	t.Cleanup(server.Close)
	loop.SetServer(server)

	// Errors pile up while the link is down.
	supervisor.RegisterError("send failed")
	supervisor.RegisterError("send failed")
	require.Equal(t, 2, supervisor.Snapshot().ConsecutiveErrors)

	go loop.Run()
	defer loop.Stop()

	// The loop sees the link as down first, then the up edge.
	time.Sleep(50 * time.Millisecond)
	link.setConnected(true)

	assert.Eventually(t, func() bool {
		return supervisor.Snapshot().ConsecutiveErrors == 0
	}, 2*time.Second, 10*time.Millisecond, "reconnection must clear the consecutive tally")

	assert.Equal(t, 2, supervisor.Snapshot().TotalErrors, "the lifetime tally survives recovery")
}

func TestLinkUpAtStartClearsNothing(t *testing.T) {
	logger := zap.NewNop()

	supervisor := liveness.NewSupervisor(liveness.Config{
		Timeout:              8 * time.Second,
		FeedInterval:         time.Second,
		MaxConsecutiveErrors: 10,
		ErrorCooldown:        time.Minute,
	}, noopTimer{}, logger, nil)

	manager := pins.NewManager(hal.NewMemoryDriver(), pins.Options{
		SafePins:     []int{13},
		PWMChannels:  4,
		PWMFrequency: 5000,
	}, logger)

	link := &fakeLink{connected: true}
	loop := NewLoop(supervisor, nil, link, nil, nil, 8080, logger)

	pipe := pipeline.New(protocol.NewParser([]int{13}), manager, nil, loop, 2*time.Second, logger)
	server := netserver.New(config.ServerConfig{TCPPort: 0, UDPPort: 0, MaxClients: 1}, pipe, logger)
	require.NoError(t, server.Start())
	t.Cleanup(server.Close)
	loop.SetServer(server)

	supervisor.RegisterError("startup failure")

	go loop.Run()
	defer loop.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, supervisor.Snapshot().ConsecutiveErrors,
		"an already-up link is not a reconnection")
}

func TestRepeatedRestartRequestsKeepFirstReason(t *testing.T) {
	loop, _ := newTestLoop(t)

	loop.RequestRestart(time.Hour, "first")
	loop.RequestRestart(0, "second")

	loop.mu.Lock()
	defer loop.mu.Unlock()
	assert.Equal(t, "first", loop.restartReason)
	assert.True(t, loop.restartAt.After(time.Now().Add(30*time.Minute)))
}
