package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mhartlieb/pincore/internal/api/web"
	"github.com/mhartlieb/pincore/internal/config"
	"github.com/mhartlieb/pincore/internal/connectivity"
	"github.com/mhartlieb/pincore/internal/console"
	"github.com/mhartlieb/pincore/internal/hal"
	"github.com/mhartlieb/pincore/internal/liveness"
	"github.com/mhartlieb/pincore/internal/netserver"
	"github.com/mhartlieb/pincore/internal/notify"
	"github.com/mhartlieb/pincore/internal/pins"
	"github.com/mhartlieb/pincore/internal/pipeline"
	"github.com/mhartlieb/pincore/internal/protocol"
	"github.com/mhartlieb/pincore/internal/status"
	"github.com/mhartlieb/pincore/internal/system"
	"go.uber.org/zap"
)

func main() {
	// Logger initialisieren
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Config laden
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Config loaded successfully")

	// Watchdog zuerst, damit der Start selbst überwacht ist
	timer := liveness.NewProcessTimer(logger)
	supervisor := liveness.NewSupervisor(liveness.Config{
		Timeout:              cfg.Watchdog.Timeout,
		FeedInterval:         cfg.Watchdog.FeedInterval,
		MaxConsecutiveErrors: cfg.Watchdog.MaxConsecutiveErrors,
		ErrorCooldown:        cfg.Watchdog.ErrorCooldown,
	}, timer, logger, nil)
	defer timer.Disarm()

	// Pin Manager mit dem Hosted-Driver
	driver := hal.NewMemoryDriver()
	pinManager := pins.NewManager(driver, pins.Options{
		SafePins:     cfg.Pins.Safe,
		PWMChannels:  cfg.Pins.PWMChannels,
		PWMFrequency: cfg.Pins.PWMFrequency,
	}, logger)

	// Netzwerk-Attachment abwarten; ein Fehlschlag ist ein Betriebsfehler,
	// kein Startabbruch. Der Server bindet trotzdem.
	monitor := connectivity.NewMonitor(cfg.Connectivity, logger)
	if !monitor.WaitForLink(supervisor) {
		supervisor.RegisterError("network link not established at startup")
	}

	parser := protocol.NewParser(cfg.Pins.Safe)

	var server *netserver.Server
	reporter := status.NewReporter(pinManager, supervisor, monitor, func() status.ServerInfo {
		return server.Info()
	})

	var notifier *notify.Notifier
	if cfg.Notify.Enabled {
		notifier, err = notify.NewNotifier(cfg.Notify, supervisor, logger)
		if err != nil {
			logger.Warn("Notification channel unavailable", zap.Error(err))
			supervisor.RegisterError("notify connect failed: " + err.Error())
			notifier = nil
		}
	}

	loop := system.NewLoop(supervisor, nil, monitor, notifier, reporter, cfg.Web.Port, logger)

	pipe := pipeline.New(parser, pinManager, reporter, loop, cfg.Watchdog.RestartDelay, logger)

	server = netserver.New(cfg.Server, pipe, logger)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start network server", zap.Error(err))
	}
	defer server.Close()
	loop.SetServer(server)

	// Web-Oberfläche optional starten
	var webServer *web.Server
	if cfg.Web.Enabled {
		hub := web.NewHub(logger)
		go hub.Run()
		pinManager.SetChangeListener(hub.PinChanged)

		webServer = web.NewServer(cfg.Web, pinManager, reporter, hub, logger)
		if err := webServer.Start(); err != nil {
			logger.Fatal("Failed to start web server", zap.Error(err))
		}
	}

	// Debug-Konsole auf stdin
	go console.New(pipe, os.Stdin, os.Stdout, logger).Run()

	logger.Info("Pin controller started",
		zap.Int("tcp_port", server.TCPPort()),
		zap.Int("udp_port", server.UDPPort()),
		zap.String("address", monitor.CurrentAddress()))

	// Control Loop auf eigener Goroutine, Signale hier behandeln
	done := make(chan struct{})
	go func() {
		loop.Run()
		close(done)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
		loop.Stop()
		<-done
	case <-done:
		// Loop endet nur durch Stop; ein Restart verlässt den Prozess direkt.
	}

	if webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := webServer.Shutdown(ctx); err != nil {
			logger.Error("Web server shutdown failed", zap.Error(err))
		}
	}
	if notifier != nil {
		notifier.Close()
	}

	logger.Info("Pin controller stopped successfully")
}
