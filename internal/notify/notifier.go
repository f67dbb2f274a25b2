// Package notify is the remote push-notification channel. Notices are
// queued without blocking and delivered over MQTT from the control loop;
// every blocking broker operation is wrapped in the supervisor's
// suspend/resume bracket because delivery can stall for multiple seconds.
package notify

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/mhartlieb/pincore/internal/config"
	"go.uber.org/zap"
)

// Suspender is the suspend/resume bracket of the liveness supervisor.
type Suspender interface {
	Suspend()
	Resume()
}

const (
	queueDepth     = 16
	publishTimeout = 10 * time.Second
)

type Notifier struct {
	client   mqtt.Client
	topic    string
	watchdog Suspender
	logger   *zap.Logger

	queue chan string

	// lastNotifiedAddress de-duplicates the startup notice per attachment.
	lastNotifiedAddress string
}

// NewNotifier connects to the broker. The connect wait is bracketed because
// a slow broker must not trip the watchdog during startup.
func NewNotifier(cfg config.NotifyConfig, watchdog Suspender, logger *zap.Logger) (*Notifier, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)

	watchdog.Suspend()
	token := client.Connect()
	ok := token.WaitTimeout(publishTimeout)
	watchdog.Resume()

	if !ok {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	logger.Info("Notification channel connected", zap.String("broker", cfg.Broker))

	return &Notifier{
		client:   client,
		topic:    cfg.Topic,
		watchdog: watchdog,
		logger:   logger,
		queue:    make(chan string, queueDepth),
	}, nil
}

// EnqueueNotice queues a notice without blocking. A full queue drops the
// notice; delivery is best-effort.
func (n *Notifier) EnqueueNotice(text string) {
	select {
	case n.queue <- text:
	default:
		n.logger.Warn("Notice queue full, dropping notice")
	}
}

// QueueStartupNotice announces the device's reachable endpoints once per
// network attachment.
func (n *Notifier) QueueStartupNotice(address string, tcpPort, udpPort, webPort int) {
	if address == n.lastNotifiedAddress {
		return
	}
	n.lastNotifiedAddress = address

	n.EnqueueNotice(fmt.Sprintf(
		"Pin controller online at %s (TCP %d, UDP %d, web %d)",
		address, tcpPort, udpPort, webPort))
}

// Pump delivers at most one queued notice. Called once per control-loop
// iteration; the publish wait is bracketed with suspend/resume.
func (n *Notifier) Pump() {
	select {
	case text := <-n.queue:
		n.deliver(text)
	default:
	}
}

func (n *Notifier) deliver(text string) {
	n.watchdog.Suspend()
	defer n.watchdog.Resume()

	token := n.client.Publish(n.topic, 1, false, text)
	if !token.WaitTimeout(publishTimeout) {
		n.logger.Warn("Notice publish timed out", zap.String("topic", n.topic))
		return
	}
	if err := token.Error(); err != nil {
		n.logger.Warn("Notice publish failed", zap.Error(err))
		return
	}

	n.logger.Info("Notice delivered", zap.String("topic", n.topic))
}

func (n *Notifier) Close() {
	n.client.Disconnect(250)
}
