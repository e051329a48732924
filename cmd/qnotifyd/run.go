package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/qnotify/internal/config"
	"github.com/jmylchreest/qnotify/internal/display"
	"github.com/jmylchreest/qnotify/internal/display/headless"
)

// runHeadless logs notifications instead of showing them.
func runHeadless(cfg *config.DaemonConfig, configPath string, logger *slog.Logger) error {
	renderer := headless.New(cfg.Timeouts.Default.Duration(), logger)

	svc, err := startServices(cfg, configPath, renderer, func(c *config.DaemonConfig) {
		renderer.SetDefaultTimeout(c.Timeouts.Default.Duration())
	}, nil, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("qnotifyd ready", "renderer", rendererLog)
	<-ctx.Done()
	logger.Info("received signal, shutting down")

	svc.stop()
	logger.Info("qnotifyd stopped")
	return nil
}

// runGTK shows notifications as layer-shell popups.
func runGTK(cfg *config.DaemonConfig, configPath string, logger *slog.Logger) error {
	app := adw.NewApplication(appID, 0)

	var (
		svc     *services
		running atomic.Bool
		failed  atomic.Bool
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		glib.IdleAdd(app.Quit)
	}()

	app.ConnectActivate(func() {
		if running.Load() {
			logger.Warn("application already running")
			return
		}
		running.Store(true)

		renderer := display.NewRenderer(&app.Application, cfg, logger)
		if err := renderer.Start(); err != nil {
			logger.Error("failed to start display renderer", "error", err)
			failed.Store(true)
			app.Quit()
			return
		}

		style := display.NewStyle(display.StylePath(), logger)
		style.Load()
		style.Apply()

		var err error
		svc, err = startServices(cfg, configPath, renderer, renderer.UpdateConfig, renderer.SetLayout, logger)
		if err != nil {
			logger.Error("failed to start services", "error", err)
			failed.Store(true)
			app.Quit()
			return
		}

		if svc.server != nil {
			server := svc.server
			renderer.SetActionCallback(func(notifyID uint32, actionKey string) {
				if notifyID == 0 {
					return
				}
				if err := server.InvokeAction(notifyID, actionKey); err != nil {
					logger.Warn("failed to emit action signal", "id", notifyID, "error", err)
				}
			})
		}

		if svc.watcher != nil {
			if err := svc.watcher.Watch(style.Path(), func() { glib.IdleAdd(style.Load) }); err != nil {
				logger.Debug("not watching stylesheet", "path", style.Path(), "error", err)
			}
		}

		logger.Info("qnotifyd ready", "renderer", rendererGTK)

		// GTK applications quit when their last window closes.
		keepAlive := gtk.NewWindow()
		keepAlive.SetApplication(&app.Application)
		keepAlive.SetDefaultSize(1, 1)
		keepAlive.SetDecorated(false)
		keepAlive.SetVisible(false)
	})

	app.ConnectShutdown(func() {
		logger.Info("application shutting down")
		if svc != nil {
			svc.stop()
		}
		running.Store(false)
	})

	if status := app.Run(os.Args[:1]); status != 0 {
		return fmt.Errorf("application exited with status %d", status)
	}
	if failed.Load() {
		return fmt.Errorf("startup failed")
	}

	logger.Info("qnotifyd stopped")
	return nil
}
