// Package system owns the control loop: one cooperative iteration feeds the
// liveness supervisor, polls connectivity, runs one multiplexer pass, pumps
// the notifier and evaluates restart decisions. No command ever executes
// outside this loop's multiplexer pass or an adapter goroutine.
package system

import (
	"os"
	"sync"
	"time"

	"github.com/mhartlieb/pincore/internal/liveness"
	"github.com/mhartlieb/pincore/internal/netserver"
	"github.com/mhartlieb/pincore/internal/notify"
	"github.com/mhartlieb/pincore/internal/status"
	"go.uber.org/zap"
)

// LinkMonitor is the slice of the connectivity monitor the loop consumes.
type LinkMonitor interface {
	Poll()
	IsConnected() bool
	CurrentAddress() string
}

const (
	// iterationDelay keeps the loop from spinning hot; every slot read is
	// non-blocking so one iteration is cheap.
	iterationDelay = 10 * time.Millisecond

	heartbeatInterval = 60 * time.Second
)

type Loop struct {
	logger     *zap.Logger
	supervisor *liveness.Supervisor
	server     *netserver.Server
	monitor    LinkMonitor
	notifier   *notify.Notifier
	reporter   *status.Reporter

	webPort      int
	wasConnected bool

	mu               sync.Mutex
	restartRequested bool
	restartAt        time.Time
	restartReason    string

	stop     chan struct{}
	stopOnce sync.Once
	exit     func(int)
}

func NewLoop(
	supervisor *liveness.Supervisor,
	server *netserver.Server,
	monitor LinkMonitor,
	notifier *notify.Notifier,
	reporter *status.Reporter,
	webPort int,
	logger *zap.Logger,
) *Loop {
	return &Loop{
		logger:     logger,
		supervisor: supervisor,
		server:     server,
		monitor:    monitor,
		notifier:   notifier,
		reporter:   reporter,
		webPort:    webPort,
		stop:       make(chan struct{}),
		exit:       os.Exit,
	}
}

// SetServer wires the request multiplexer after construction. The loop and
// the server reference each other through the pipeline, so one side has to
// be attached late.
func (l *Loop) SetServer(server *netserver.Server) {
	l.server = server
}

// RequestRestart schedules a full restart after the delay. Implements
// liveness.RestartRequester for the command pipeline and the console.
func (l *Loop) RequestRestart(delay time.Duration, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.restartRequested {
		return
	}
	l.restartRequested = true
	l.restartAt = time.Now().Add(delay)
	l.restartReason = reason

	l.logger.Warn("Restart requested",
		zap.Duration("delay", delay),
		zap.String("reason", reason))
}

// Run iterates until Stop is called or a restart fires.
func (l *Loop) Run() {
	lastHeartbeat := time.Now()

	// Only a transition observed by the loop counts as a reconnection; a
	// link that was already up at startup clears nothing.
	l.wasConnected = l.monitor.IsConnected()

	for {
		select {
		case <-l.stop:
			return
		default:
		}

		l.supervisor.Feed()
		l.monitor.Poll()
		l.observeLink()
		l.server.Poll()

		if l.notifier != nil {
			if l.monitor.IsConnected() {
				l.notifier.QueueStartupNotice(
					l.monitor.CurrentAddress(),
					l.server.TCPPort(),
					l.server.UDPPort(),
					l.webPort)
			}
			l.notifier.Pump()
		}

		if time.Since(lastHeartbeat) >= heartbeatInterval {
			lastHeartbeat = time.Now()
			stats := l.supervisor.Snapshot()
			l.logger.Info("Heartbeat",
				zap.Int64("uptime_seconds", stats.UptimeSeconds),
				zap.Int("tcp_clients", l.server.ConnectedClients()),
				zap.Int("error_count", stats.TotalErrors),
				zap.Bool("connected", l.monitor.IsConnected()))
		}

		if l.restartDue() {
			l.restart(l.restartReason)
			return
		}
		if l.supervisor.ShouldRestart() {
			l.restart("automatic restart due to consecutive errors")
			return
		}

		time.Sleep(iterationDelay)
	}
}

// observeLink clears the consecutive error tally on the link's false to true
// edge. A restored network is an explicit recovery; errors accumulated while
// offline must not push the device toward a restart.
func (l *Loop) observeLink() {
	connected := l.monitor.IsConnected()
	if connected && !l.wasConnected {
		l.logger.Info("Network link restored, clearing consecutive errors")
		l.supervisor.ClearErrors()
	}
	l.wasConnected = connected
}

// Stop ends the loop without restarting; used for graceful shutdown.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Loop) restartDue() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.restartRequested && time.Now().After(l.restartAt)
}

// restart emits a final status best-effort, then exits with a non-zero code
// so the service supervisor relaunches the binary.
func (l *Loop) restart(reason string) {
	stats := l.supervisor.Snapshot()

	l.logger.Error("System restart initiated",
		zap.String("reason", reason),
		zap.Int64("uptime_seconds", stats.UptimeSeconds),
		zap.Int("total_errors", stats.TotalErrors),
		zap.String("last_error", stats.LastError))

	if l.reporter != nil {
		l.logger.Info("Final status", zap.String("status", l.reporter.DocumentJSON()))
	}
	if l.notifier != nil {
		l.notifier.EnqueueNotice("Pin controller restarting: " + reason)
		l.notifier.Pump()
	}

	_ = l.logger.Sync()
	l.exit(1)
}
