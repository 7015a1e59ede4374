// Package daemonrun hosts the daemon process runtime loop so both the hidden
// CLI subcommand and tests can drive a full daemon lifecycle.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"voicebox/internal/archive"
	"voicebox/internal/catalog"
	"voicebox/internal/config"
	"voicebox/internal/daemon"
	"voicebox/internal/deps"
	"voicebox/internal/importer"
	"voicebox/internal/ipc"
	"voicebox/internal/logging"
	"voicebox/internal/notifications"
	"voicebox/internal/player"
	"voicebox/internal/state"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the voicebox daemon runtime loop and blocks until a signal or a
// shutdown request over IPC.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logPath := filepath.Join(cfg.Paths.LogDir, "voicebox.log")
	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "voiceboxd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := state.Open(cfg)
	if err != nil {
		logger.Error("open state store", logging.Error(err))
		return err
	}
	defer store.Close()

	cat := catalog.New(logger)
	archiveStore := archive.NewStore(
		cfg.Paths.PacksDir,
		time.Duration(cfg.Import.DownloadTimeout)*time.Second,
		cfg.Import.MaxArchiveMiB,
		logger,
	)
	notifier := notifications.NewService(cfg)
	orchestrator := importer.New(archiveStore, cat, store, notifier, cfg.Import.KeepArchives, logger)
	transport := player.NewExecTransport(cfg.FFplayBinary(), cfg.FFprobeBinary(), logger)
	controller := player.NewController(transport, cat.AudioPath, logger)

	d, err := daemon.New(cfg, store, cat, archiveStore, orchestrator, controller, notifier, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return err
	}

	select {
	case <-signalCtx.Done():
	case <-d.ShutdownRequested():
	}
	logger.Info("voicebox daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	}
	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		attrs = append(attrs,
			logging.Bool(status.Name+"_available", status.Available),
			logging.String(status.Name+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
