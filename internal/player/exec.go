package player

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"voicebox/internal/logging"
)

// ExecTransport plays audio through external processes: ffprobe measures clip
// duration at load and ffplay performs playback. Pause and resume map to
// SIGSTOP/SIGCONT; seeking restarts ffplay at the target offset. Position is
// derived from a monotonic clock net of paused time.
type ExecTransport struct {
	ffplay  string
	ffprobe string
	logger  *slog.Logger
	events  chan TransportEvent

	mu          sync.Mutex
	cmd         *exec.Cmd
	path        string
	durationMs  int64
	baseMs      int64
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	paused      bool
	generation  int
}

// NewExecTransport constructs a transport around the given player binaries.
func NewExecTransport(ffplayBinary, ffprobeBinary string, logger *slog.Logger) *ExecTransport {
	return &ExecTransport{
		ffplay:  ffplayBinary,
		ffprobe: ffprobeBinary,
		logger:  logging.NewComponentLogger(logger, "transport"),
		events:  make(chan TransportEvent, 16),
	}
}

// Events implements Transport.
func (t *ExecTransport) Events() <-chan TransportEvent {
	return t.events
}

// Load implements Transport. It probes the clip duration, starts ffplay, and
// emits a ready event carrying the measured duration.
func (t *ExecTransport) Load(ctx context.Context, path string) error {
	durationMs, err := t.probeDuration(ctx, path)
	if err != nil {
		return fmt.Errorf("probe duration: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.killLocked()
	t.path = path
	t.durationMs = durationMs
	t.baseMs = 0
	if err := t.startLocked(0); err != nil {
		return err
	}
	t.emit(TransportEvent{Kind: TransportReady, DurationMs: durationMs})
	return nil
}

// Pause implements Transport by stopping the ffplay process in place.
func (t *ExecTransport) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil || t.cmd.Process == nil || t.paused {
		return nil
	}
	if err := unix.Kill(t.cmd.Process.Pid, unix.SIGSTOP); err != nil {
		return fmt.Errorf("pause playback: %w", err)
	}
	t.paused = true
	t.pausedAt = time.Now()
	return nil
}

// Resume implements Transport by continuing the stopped process and
// re-emitting readiness.
func (t *ExecTransport) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil || t.cmd.Process == nil || !t.paused {
		return nil
	}
	if err := unix.Kill(t.cmd.Process.Pid, unix.SIGCONT); err != nil {
		return fmt.Errorf("resume playback: %w", err)
	}
	t.pausedTotal += time.Since(t.pausedAt)
	t.paused = false
	t.emit(TransportEvent{Kind: TransportReady, DurationMs: t.durationMs})
	return nil
}

// Stop implements Transport. No ended event is emitted for a caller stop.
func (t *ExecTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.killLocked()
	t.path = ""
	t.durationMs = 0
	return nil
}

// SeekTo implements Transport by restarting ffplay at the target offset.
func (t *ExecTransport) SeekTo(positionMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.path == "" {
		return nil
	}
	if positionMs < 0 {
		positionMs = 0
	}
	t.killLocked()
	if err := t.startLocked(positionMs); err != nil {
		return err
	}
	t.emit(TransportEvent{Kind: TransportReady, DurationMs: t.durationMs})
	return nil
}

// PositionMs implements Transport.
func (t *ExecTransport) PositionMs() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.startedAt.IsZero() {
		return 0
	}
	var elapsed time.Duration
	if t.paused {
		elapsed = t.pausedAt.Sub(t.startedAt) - t.pausedTotal
	} else {
		elapsed = time.Since(t.startedAt) - t.pausedTotal
	}
	if elapsed < 0 {
		elapsed = 0
	}
	position := t.baseMs + elapsed.Milliseconds()
	if t.durationMs > 0 && position > t.durationMs {
		position = t.durationMs
	}
	return position
}

// Close implements Transport.
func (t *ExecTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.killLocked()
	return nil
}

// startLocked launches ffplay at offsetMs and installs a waiter that reports
// natural end or fault for this process generation only.
func (t *ExecTransport) startLocked(offsetMs int64) error {
	args := []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}
	if offsetMs > 0 {
		args = append(args, "-ss", strconv.FormatFloat(float64(offsetMs)/1000, 'f', 3, 64))
	}
	args = append(args, t.path)

	cmd := exec.Command(t.ffplay, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", t.ffplay, err)
	}

	t.cmd = cmd
	t.baseMs = offsetMs
	t.startedAt = time.Now()
	t.pausedTotal = 0
	t.paused = false
	t.generation++
	generation := t.generation

	go func() {
		err := cmd.Wait()

		t.mu.Lock()
		defer t.mu.Unlock()
		// A kill for stop/seek/replace bumps the generation first; only the
		// live process reports back.
		if generation != t.generation || t.cmd != cmd {
			return
		}
		t.cmd = nil
		t.startedAt = time.Time{}
		if err != nil {
			t.logger.Warn("player process exited abnormally", logging.Error(err))
			t.emit(TransportEvent{Kind: TransportFaulted, Err: err})
			return
		}
		t.emit(TransportEvent{Kind: TransportEnded})
	}()
	return nil
}

func (t *ExecTransport) killLocked() {
	if t.cmd == nil || t.cmd.Process == nil {
		return
	}
	t.generation++
	if t.paused {
		_ = unix.Kill(t.cmd.Process.Pid, unix.SIGCONT)
		t.paused = false
	}
	if err := t.cmd.Process.Kill(); err != nil {
		t.logger.Warn("kill player process", logging.Error(err))
	}
	t.cmd = nil
	t.startedAt = time.Time{}
	t.pausedTotal = 0
}

// emit never blocks; a stalled observer loses intermediate events, never the
// stream itself.
func (t *ExecTransport) emit(event TransportEvent) {
	select {
	case t.events <- event:
	default:
	}
}

func (t *ExecTransport) probeDuration(ctx context.Context, path string) (int64, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("run %s: %w", t.ffprobe, err)
	}
	return parseProbeDuration(string(out))
}

// parseProbeDuration converts ffprobe's fractional-seconds output to
// milliseconds.
func parseProbeDuration(output string) (int64, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" || trimmed == "N/A" {
		return 0, fmt.Errorf("no duration in probe output %q", output)
	}
	seconds, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse probe duration %q: %w", trimmed, err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative probe duration %q", trimmed)
	}
	return int64(seconds * 1000), nil
}
