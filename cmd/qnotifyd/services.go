package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmylchreest/qnotify/internal/config"
	"github.com/jmylchreest/qnotify/internal/daemon"
	"github.com/jmylchreest/qnotify/internal/dbus"
	"github.com/jmylchreest/qnotify/internal/dispatch"
	"github.com/jmylchreest/qnotify/internal/icons"
	"github.com/jmylchreest/qnotify/internal/model"
	"github.com/jmylchreest/qnotify/internal/request"
)

// services is the renderer-independent part of the daemon: transport,
// intake, dispatch and hot reload.
type services struct {
	logger *slog.Logger

	dispatcher *dispatch.Dispatcher
	agent      *daemon.Agent
	server     *dbus.NotificationServer // nil in monitor mode
	monitor    *dbus.Monitor            // nil in server mode
	notifier   *daemon.InternalNotifier
	reloader   *daemon.Reloader
	watcher    *daemon.FileWatcher

	dismissCh chan os.Signal
}

func newParser(cfg *config.DaemonConfig, logger *slog.Logger) *request.Parser {
	resolver := icons.NewThemeResolver(icons.Options{
		Theme:     cfg.Icons.Theme,
		ExtraDirs: cfg.Icons.ExtraDirs,
		Logger:    logger,
	})
	return request.NewParser(resolver, cfg.Icons.LookupTimeout.Duration(), logger)
}

// startServices wires the intake path to renderer and starts the transport.
// applyConfig receives every valid reloaded configuration and applyLayout
// every display template load; either may be nil.
func startServices(
	cfg *config.DaemonConfig,
	configPath string,
	renderer dispatch.Renderer,
	applyConfig func(*config.DaemonConfig),
	applyLayout daemon.LayoutCallback,
	logger *slog.Logger,
) (*services, error) {
	s := &services{logger: logger}

	s.dispatcher = dispatch.New(renderer, logger)
	s.agent = daemon.NewAgent(newParser(cfg, logger), s.dispatcher, logger)
	s.notifier = daemon.NewInternalNotifier(logger)

	switch cfg.Mode() {
	case config.TransportMonitor:
		s.monitor = dbus.NewMonitor(logger)
		s.monitor.SetRequestHandler(s.agent.DeliverRequest)
		s.notifier.SetDeliver(func(args []any) { s.agent.DeliverRequest(args, 0) })

	default:
		s.server = dbus.NewNotificationServer(logger)
		s.server.SetServerInfo(dbus.ServerInfo{
			Name:        appName,
			Vendor:      "qnotify",
			Version:     version,
			SpecVersion: "1.2",
		})
		s.server.SetRequestHandler(s.agent.DeliverRequest)
		s.server.SetCloseHandler(func(id uint32) { s.dispatcher.Dismiss(id) })
		s.dispatcher.SetRetireCallback(func(rec model.Record, reason model.CloseReason) {
			if rec.NotifyID != 0 {
				s.server.Retire(rec.NotifyID, reason)
			}
		})
		s.notifier.SetDeliver(func(args []any) { s.server.NotifyInternal(args) })
	}

	s.reloader = daemon.NewReloader(configPath, cfg, s.notifier, logger)
	s.reloader.SetLayoutOverride(opts.layout)
	s.reloader.SetLayoutCallback(applyLayout)
	s.reloader.SetReloadCallback(func(newCfg *config.DaemonConfig) {
		if newCfg.Mode() != cfg.Mode() {
			logger.Warn("transport mode changes require a restart", "mode", newCfg.Mode())
		}
		s.agent.SetParser(newParser(newCfg, logger))
		if applyConfig != nil {
			applyConfig(newCfg)
		}
	})

	// The template must be in place before the first request arrives.
	if err := s.reloader.CheckLayout(); err != nil {
		logger.Warn("display template is invalid, notifications will not be shown until it is fixed", "error", err)
	}

	if s.server != nil {
		if err := s.server.Start(); err != nil {
			s.dispatcher.Stop()
			return nil, fmt.Errorf("failed to start D-Bus server: %w", err)
		}
	} else {
		if err := s.monitor.Start(); err != nil {
			s.dispatcher.Stop()
			return nil, fmt.Errorf("failed to start D-Bus monitor: %w", err)
		}
	}

	s.dismissCh = make(chan os.Signal, 1)
	signal.Notify(s.dismissCh, syscall.SIGUSR1)
	go s.dismissOnSignal()

	watcher, err := daemon.NewFileWatcher(logger)
	if err != nil {
		logger.Warn("hot reload disabled", "error", err)
		return s, nil
	}
	if err := s.reloader.WatchFiles(watcher); err != nil {
		logger.Warn("failed to watch config files", "error", err)
	}
	watcher.Start()
	s.watcher = watcher

	return s, nil
}

// dismissOnSignal closes the notification on screen for every SIGUSR1,
// e.g. from a keybinding running "pkill -USR1 qnotifyd".
func (s *services) dismissOnSignal() {
	for range s.dismissCh {
		if !s.dispatcher.DismissActive() {
			s.logger.Debug("dismiss requested with nothing on screen")
		}
	}
}

// stop shuts everything down in reverse order.
func (s *services) stop() {
	signal.Stop(s.dismissCh)
	close(s.dismissCh)
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			s.logger.Warn("error stopping file watcher", "error", err)
		}
	}
	s.dispatcher.Stop()
	if s.server != nil {
		_ = s.server.Stop()
	}
	if s.monitor != nil {
		if err := s.monitor.Stop(); err != nil {
			s.logger.Warn("error stopping monitor", "error", err)
		}
	}
}
