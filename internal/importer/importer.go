package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voicebox/internal/archive"
	"voicebox/internal/catalog"
	"voicebox/internal/logging"
	"voicebox/internal/notifications"
	"voicebox/internal/state"
	"voicebox/internal/voicepack"
)

// ErrImportInFlight is returned when an import is requested while another
// attempt is still running.
var ErrImportInFlight = errors.New("an import is already in flight")

// Terminal error messages surfaced to observers.
const (
	MsgInvalidArchive = "Invalid archive or missing manifest"
	MsgLoadFailed     = "Failed to load voice pack"
)

// EventKind discriminates import progress events.
type EventKind string

const (
	EventLoading  EventKind = "loading"
	EventProgress EventKind = "progress"
	EventSuccess  EventKind = "success"
	EventError    EventKind = "error"
)

// Event is one observable step of an import attempt. Percent is meaningful
// only for EventProgress, Message only for EventError, and Pack only for
// EventSuccess.
type Event struct {
	// ImportID is the history row for this attempt; zero when recording the
	// attempt itself failed.
	ImportID int64
	Kind     EventKind
	Percent  int
	Message  string
	Pack     *voicepack.VoicePack
}

// Terminal reports whether no further events follow on the stream.
func (e Event) Terminal() bool {
	return e.Kind == EventSuccess || e.Kind == EventError
}

// Source names where an archive comes from. Exactly one field is set.
type Source struct {
	URL      string
	FilePath string
}

func (s Source) String() string {
	if s.URL != "" {
		return s.URL
	}
	return s.FilePath
}

func (s Source) kind() state.SourceType {
	if s.URL != "" {
		return state.SourceURL
	}
	return state.SourceFile
}

func (s Source) validate() error {
	hasURL := strings.TrimSpace(s.URL) != ""
	hasFile := strings.TrimSpace(s.FilePath) != ""
	if hasURL == hasFile {
		return errors.New("import source requires exactly one of URL or FilePath")
	}
	return nil
}

// Orchestrator sequences acquisition, extraction, parsing, and commit into one
// observable import operation. At most one attempt runs at a time.
type Orchestrator struct {
	archive  *archive.Store
	catalog  *catalog.Catalog
	store    *state.Store
	notifier notifications.Service
	logger   *slog.Logger

	keepArchives bool
	inFlight     atomic.Bool
}

// New constructs an import orchestrator.
func New(
	archiveStore *archive.Store,
	cat *catalog.Catalog,
	store *state.Store,
	notifier notifications.Service,
	keepArchives bool,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		archive:      archiveStore,
		catalog:      cat,
		store:        store,
		notifier:     notifier,
		keepArchives: keepArchives,
		logger:       logging.NewComponentLogger(logger, "importer"),
	}
}

// Import starts an import attempt and returns its event stream. The stream
// always ends with a terminal Success or Error event and is then closed.
// A second call while an attempt is running returns ErrImportInFlight.
func (o *Orchestrator) Import(ctx context.Context, source Source) (<-chan Event, error) {
	if err := source.validate(); err != nil {
		return nil, err
	}
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrImportInFlight
	}

	// Sized so a full attempt (loading, one event per percent, terminal)
	// never blocks the pipeline on a slow observer.
	events := make(chan Event, 128)
	go func() {
		defer o.inFlight.Store(false)
		defer close(events)
		o.run(ctx, source, events)
	}()
	return events, nil
}

// Busy reports whether an import attempt is currently running.
func (o *Orchestrator) Busy() bool {
	return o.inFlight.Load()
}

func (o *Orchestrator) run(ctx context.Context, source Source, events chan<- Event) {
	record, err := o.store.BeginImport(ctx, source.String(), source.kind())
	if err != nil {
		o.logger.Error("record import attempt", logging.Error(err))
		events <- Event{Kind: EventLoading}
		o.fail(ctx, source, nil, err.Error(), events)
		return
	}
	importID := record.ID
	events <- Event{ImportID: importID, Kind: EventLoading}

	_ = o.notifier.NotifyImportStarted(ctx, source.String())

	archivePath, err := o.acquire(ctx, importID, source, events)
	if err != nil {
		o.logger.Warn("archive acquisition failed",
			logging.String("source", source.String()),
			logging.Error(err))
		// Acquisition errors carry their own description (network failures,
		// unreadable local files); pass it through so observers can tell
		// transport trouble apart from a bad archive.
		message := err.Error()
		if ctxErr := ctx.Err(); ctxErr != nil {
			message = ctxErr.Error()
		}
		o.fail(ctx, source, record, message, events)
		return
	}
	if !o.keepArchives {
		defer o.archive.RemoveArchive(archivePath)
	}

	if err := ctx.Err(); err != nil {
		o.fail(ctx, source, record, err.Error(), events)
		return
	}

	destDir := o.stagingDir()
	ok, err := o.archive.Extract(archivePath, destDir)
	if err != nil {
		o.logger.Error("extraction fault", logging.String("archive", archivePath), logging.Error(err))
		o.fail(ctx, source, record, MsgLoadFailed, events)
		return
	}
	if !ok {
		o.removeStaging(destDir)
		o.fail(ctx, source, record, MsgInvalidArchive, events)
		return
	}

	pack := voicepack.LoadFromDirectory(destDir)
	if pack == nil {
		o.removeStaging(destDir)
		o.fail(ctx, source, record, MsgLoadFailed, events)
		return
	}

	if err := ctx.Err(); err != nil {
		o.removeStaging(destDir)
		o.fail(ctx, source, record, err.Error(), events)
		return
	}

	// Commit point: catalog first, then durable state. Observers never see a
	// partially applied pack.
	o.catalog.SetCurrent(pack, destDir)
	if err := o.store.SetCurrentPackPath(ctx, destDir); err != nil {
		o.logger.Error("persist current pack path", logging.Error(err))
	}
	if err := o.store.FinishImport(ctx, record.ID, state.StatusSucceeded, pack.Title, destDir, ""); err != nil {
		o.logger.Error("record import success", logging.Error(err))
	}
	_ = o.notifier.NotifyImportCompleted(ctx, pack.Title, len(pack.Voices))

	o.logger.Info("import committed",
		logging.String("source", source.String()),
		logging.String("title", pack.Title),
		logging.String("location", destDir))
	events <- Event{ImportID: importID, Kind: EventSuccess, Pack: pack}
}

// acquire materializes the archive locally. Network sources stream progress;
// local copies emit none.
func (o *Orchestrator) acquire(ctx context.Context, importID int64, source Source, events chan<- Event) (string, error) {
	if source.URL != "" {
		return o.archive.AcquireFromURL(ctx, source.URL, func(percent int) {
			select {
			case events <- Event{ImportID: importID, Kind: EventProgress, Percent: percent}:
			default:
			}
		})
	}
	return o.archive.AcquireFromFile(source.FilePath)
}

// stagingDir names a fresh extraction destination. The timestamp plus random
// suffix avoids collision with any previous import.
func (o *Orchestrator) stagingDir() string {
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	return filepath.Join(o.archive.Root(), "packs", name)
}

func (o *Orchestrator) removeStaging(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		o.logger.Warn("remove staging directory", logging.String("dir", dir), logging.Error(err))
	}
}

func (o *Orchestrator) fail(_ context.Context, source Source, record *state.ImportRecord, message string, events chan<- Event) {
	// The attempt context may already be canceled; bookkeeping still has to
	// land, so persistence and notification run detached.
	ctx := context.Background()
	if record != nil {
		if err := o.store.FinishImport(ctx, record.ID, state.StatusFailed, "", "", message); err != nil {
			o.logger.Error("record import failure", logging.Error(err))
		}
	}
	_ = o.notifier.NotifyImportFailed(ctx, source.String(), message)
	var importID int64
	if record != nil {
		importID = record.ID
	}
	events <- Event{ImportID: importID, Kind: EventError, Message: message}
}

// RestoreCurrent reloads the pack from the persisted current location. When no
// location is stored, or the pack no longer parses, the built-in pack is
// installed instead and the stale location cleared.
func (o *Orchestrator) RestoreCurrent(ctx context.Context) error {
	location, err := o.store.CurrentPackPath(ctx)
	if err != nil {
		return fmt.Errorf("read current pack path: %w", err)
	}
	if location != "" {
		if pack := voicepack.LoadFromDirectory(location); pack != nil {
			o.catalog.SetCurrent(pack, location)
			o.logger.Info("restored pack",
				logging.String("title", pack.Title),
				logging.String("location", location))
			return nil
		}
		o.logger.Warn("persisted pack unavailable, falling back to built-in",
			logging.String("location", location))
		if err := o.store.ClearCurrentPackPath(ctx); err != nil {
			o.logger.Error("clear stale pack path", logging.Error(err))
		}
	}
	o.catalog.LoadBuiltIn()
	return nil
}
