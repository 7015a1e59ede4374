package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"voicebox/internal/api"
	"voicebox/internal/archive"
	"voicebox/internal/catalog"
	"voicebox/internal/config"
	"voicebox/internal/importer"
	"voicebox/internal/logging"
	"voicebox/internal/notifications"
	"voicebox/internal/player"
	"voicebox/internal/state"
)

// Daemon coordinates the voicebox services and enforces single-instance
// execution: one catalog, one playback controller, one import at a time.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *state.Store
	catalog      *catalog.Catalog
	archive      *archive.Store
	orchestrator *importer.Orchestrator
	controller   *player.Controller
	notifier     notifications.Service
	logPath      string

	lockPath string
	lock     *flock.Flock

	hub *eventHub
	api *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// New constructs a daemon from initialized dependencies.
func New(
	cfg *config.Config,
	store *state.Store,
	cat *catalog.Catalog,
	archiveStore *archive.Store,
	orchestrator *importer.Orchestrator,
	controller *player.Controller,
	notifier notifications.Service,
	logger *slog.Logger,
) (*Daemon, error) {
	if cfg == nil || store == nil || cat == nil || archiveStore == nil ||
		orchestrator == nil || controller == nil || notifier == nil {
		return nil, errors.New("daemon requires config, store, catalog, archive, orchestrator, controller, and notifier")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "voiceboxd.lock")
	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        store,
		catalog:      cat,
		archive:      archiveStore,
		orchestrator: orchestrator,
		controller:   controller,
		notifier:     notifier,
		logPath:      filepath.Join(cfg.Paths.LogDir, "voicebox.log"),
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
		hub:          newEventHub(),
		shutdown:     make(chan struct{}),
	}

	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the instance lock, restores persisted state, and brings up
// the HTTP surface.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another voicebox daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if settled, err := d.store.FailRunning(d.ctx, "daemon restarted"); err != nil {
		d.logger.Warn("settle interrupted imports", logging.Error(err))
	} else if settled > 0 {
		d.logger.Info("settled interrupted imports", logging.Int64("count", settled))
	}
	d.archive.CleanupTemp()

	d.catalog.LoadBuiltIn()
	if err := d.orchestrator.RestoreCurrent(d.ctx); err != nil {
		d.logger.Warn("restore current pack", logging.Error(err))
	}

	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.wg.Add(1)
	go d.forwardPlayerStates()

	d.running.Store(true)
	d.logger.Info("voicebox daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the HTTP surface, halts playback, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	_ = d.controller.Apply(player.Stop())
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("voicebox daemon stopped")
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	closeErr := d.controller.Close()
	if err := d.store.Close(); err != nil {
		return err
	}
	return closeErr
}

// RequestShutdown asks the process hosting the daemon to exit.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdown) })
}

// ShutdownRequested signals a shutdown initiated through the control surface.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdown
}

// forwardPlayerStates funnels controller state changes onto the event stream.
func (d *Daemon) forwardPlayerStates() {
	defer d.wg.Done()

	states := d.controller.Subscribe()
	defer d.controller.Unsubscribe(states)
	for {
		select {
		case <-d.ctx.Done():
			return
		case current, ok := <-states:
			if !ok {
				return
			}
			dto := api.FromPlayerState(current)
			d.hub.Publish(api.Event{Type: api.EventTypePlayer, Player: &dto})
		}
	}
}

// StartImport launches an import attempt and returns its history id. Events
// are forwarded to the daemon event stream as they occur.
func (d *Daemon) StartImport(req api.ImportRequest) (int64, error) {
	source := importer.Source{URL: strings.TrimSpace(req.URL)}
	if source.URL == "" {
		path := strings.TrimSpace(req.FilePath)
		if path != "" {
			expanded, err := config.ExpandPath(path)
			if err != nil {
				return 0, err
			}
			path = expanded
		}
		source.FilePath = path
	}

	ctx := d.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	events, err := d.orchestrator.Import(ctx, source)
	if err != nil {
		return 0, err
	}

	// The loading event is emitted first and carries the history id.
	first, ok := <-events
	if !ok {
		return 0, errors.New("import stream closed before start")
	}
	frame := api.FromImportEvent(first)
	d.hub.Publish(api.Event{Type: api.EventTypeImport, Import: &frame})

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for event := range events {
			frame := api.FromImportEvent(event)
			d.hub.Publish(api.Event{Type: api.EventTypeImport, Import: &frame})
		}
	}()
	return first.ImportID, nil
}

// WaitForImport blocks until the given import reaches a terminal status.
func (d *Daemon) WaitForImport(ctx context.Context, id int64, timeout time.Duration) (*state.ImportRecord, error) {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		record, err := d.store.GetByID(waitCtx, id)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, fmt.Errorf("import %d not found", id)
		}
		if record.Status != state.StatusRunning {
			return record, nil
		}
		select {
		case <-waitCtx.Done():
			return record, waitCtx.Err()
		case <-ticker.C:
		}
	}
}

// ApplyPlayerAction parses and applies a playback action, returning the state
// observed immediately after.
func (d *Daemon) ApplyPlayerAction(req api.PlayerActionRequest) (api.PlayerState, error) {
	var action player.Action
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "play":
		pack := d.catalog.Current()
		if pack == nil {
			return api.PlayerState{}, errors.New("no voice pack loaded")
		}
		voice := pack.VoiceByID(req.VoiceID)
		if voice == nil {
			return api.PlayerState{}, fmt.Errorf("voice %q not found in pack %q", req.VoiceID, pack.Title)
		}
		action = player.Play(voice)
	case "pause":
		action = player.Pause()
	case "resume":
		action = player.Resume()
	case "stop":
		action = player.Stop()
	case "seek":
		action = player.SeekTo(req.PositionMs)
	default:
		return api.PlayerState{}, fmt.Errorf("unknown player action %q", req.Action)
	}

	if err := d.controller.Apply(action); err != nil {
		return api.PlayerState{}, err
	}
	return api.FromPlayerState(d.controller.State()), nil
}

// PlayerState returns the current playback state.
func (d *Daemon) PlayerState() api.PlayerState {
	return api.FromPlayerState(d.controller.State())
}

// CurrentPack returns the active pack, or nil before the catalog loads.
func (d *Daemon) CurrentPack() *api.Pack {
	return api.FromVoicePack(d.catalog.Current())
}

// History lists import attempts, optionally filtered by status.
func (d *Daemon) History(ctx context.Context, statuses []string) ([]api.ImportRecord, error) {
	parsed := make([]state.Status, 0, len(statuses))
	for _, value := range statuses {
		status, ok := state.ParseStatus(value)
		if !ok {
			continue
		}
		parsed = append(parsed, status)
	}
	records, err := d.store.List(ctx, parsed...)
	if err != nil {
		return nil, err
	}
	out := make([]api.ImportRecord, 0, len(records))
	for _, record := range records {
		if dto := api.FromImportRecord(record); dto != nil {
			out = append(out, *dto)
		}
	}
	return out, nil
}

// ClearHistory removes finished import records.
func (d *Daemon) ClearHistory(ctx context.Context) (int64, error) {
	return d.store.ClearHistory(ctx)
}

// DatabaseHealth returns detailed state database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (state.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// SubscribeEvents registers an observer of the daemon event stream.
func (d *Daemon) SubscribeEvents() chan api.Event {
	return d.hub.Subscribe()
}

// UnsubscribeEvents releases a SubscribeEvents registration.
func (d *Daemon) UnsubscribeEvents(ch chan api.Event) {
	d.hub.Unsubscribe(ch)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// APIAddr returns the bound HTTP API address, or "" when disabled.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() api.DaemonStatus {
	status := api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		ImportBusy:   d.orchestrator.Busy(),
		Player:       d.PlayerState(),
		StateDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if pack := d.catalog.Current(); pack != nil {
		status.PackTitle = pack.Title
		status.VoiceCount = len(pack.Voices)
	}
	return status
}
