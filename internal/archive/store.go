package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voicebox/internal/fileutil"
	"voicebox/internal/logging"
	"voicebox/internal/voicepack"
)

// ErrNetwork marks transport-level failures during archive acquisition.
var ErrNetwork = errors.New("network error")

// ErrTooLarge is returned when a download exceeds the configured size limit.
var ErrTooLarge = errors.New("archive exceeds size limit")

// ProgressFunc receives download progress as a 0-100 percentage. Values are
// monotonic within one acquisition and 100 is always reported on completion.
type ProgressFunc func(percent int)

// Store materializes voice-pack archives under a single content root and
// extracts them. It performs no catalog bookkeeping of its own.
type Store struct {
	root     string
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// NewStore constructs a store rooted at dir. maxArchiveMiB of zero disables
// the download size limit.
func NewStore(dir string, downloadTimeout time.Duration, maxArchiveMiB int, logger *slog.Logger) *Store {
	if downloadTimeout <= 0 {
		downloadTimeout = 5 * time.Minute
	}
	return &Store{
		root:     dir,
		client:   &http.Client{Timeout: downloadTimeout},
		maxBytes: int64(maxArchiveMiB) * 1024 * 1024,
		logger:   logging.NewComponentLogger(logger, "archive"),
	}
}

// Root returns the content root directory.
func (s *Store) Root() string {
	return s.root
}

// archiveName builds a fresh local name for an acquired archive.
func archiveName() string {
	return fmt.Sprintf("voice_pack_%d.zip", time.Now().UnixMilli())
}

// AcquireFromFile copies a local archive into the content root under a fresh
// name and returns the destination path.
func (s *Store) AcquireFromFile(src string) (string, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("ensure content root: %w", err)
	}
	dst := filepath.Join(s.root, archiveName())
	if err := fileutil.CopyFile(src, dst); err != nil {
		return "", fmt.Errorf("copy archive from %s: %w", src, err)
	}
	s.logger.Debug("archive copied", logging.String("source", src), logging.String("dest", dst))
	return dst, nil
}

// AcquireFromURL streams an archive from url into the content root, reporting
// true download percentage through onProgress as bytes arrive. When the server
// does not announce a length, intermediate progress is withheld and only the
// final 100 is reported.
func (s *Store) AcquireFromURL(ctx context.Context, url string, onProgress ProgressFunc) (string, error) {
	if onProgress == nil {
		onProgress = func(int) {}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected status %s", ErrNetwork, resp.Status)
	}

	if s.maxBytes > 0 && resp.ContentLength > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes announced", ErrTooLarge, resp.ContentLength)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("ensure content root: %w", err)
	}
	dst := filepath.Join(s.root, archiveName())
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}

	written, err := s.copyWithProgress(ctx, out, resp.Body, resp.ContentLength, onProgress)
	closeErr := out.Close()
	if err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	if closeErr != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("finish archive file: %w", closeErr)
	}

	onProgress(100)
	s.logger.Info("archive downloaded",
		logging.String("url", url),
		logging.Int64("bytes", written),
		logging.String("dest", dst))
	return dst, nil
}

func (s *Store) copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, 128*1024)
	var written int64
	lastPercent := -1
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if s.maxBytes > 0 && written+int64(n) > s.maxBytes {
				return written, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, s.maxBytes)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("write archive: %w", err)
			}
			written += int64(n)
			if total > 0 {
				percent := int(written * 100 / total)
				if percent > 99 {
					percent = 99
				}
				if percent > lastPercent {
					lastPercent = percent
					onProgress(percent)
				}
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("%w: %v", ErrNetwork, readErr)
		}
	}
}

// Extract decompresses archivePath into destDir, creating intermediate
// directories as needed. It returns true only when extraction succeeded and
// index.json exists directly under destDir. Structurally invalid archives,
// entries that escape the destination root, and missing manifests yield
// (false, nil); errors are reserved for I/O faults.
func (s *Store) Extract(archivePath, destDir string) (bool, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		if reader != nil {
			_ = reader.Close()
		}
		if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrInsecurePath) {
			s.logger.Warn("invalid archive", logging.String("archive", archivePath))
			return false, nil
		}
		return false, fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return false, fmt.Errorf("create destination: %w", err)
	}

	for _, entry := range reader.File {
		target, ok := secureJoin(destDir, entry.Name)
		if !ok {
			s.logger.Warn("archive entry escapes destination, rejecting archive",
				logging.String("entry", entry.Name))
			return false, nil
		}
		if entry.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return false, fmt.Errorf("create directory %s: %w", target, err)
			}
			continue
		}
		if err := extractEntry(entry, target); err != nil {
			return false, err
		}
	}

	manifest := filepath.Join(destDir, voicepack.ManifestName)
	if !fileutil.Exists(manifest) {
		s.logger.Warn("extracted archive is missing manifest", logging.String("dest", destDir))
		return false, nil
	}
	return true, nil
}

// secureJoin resolves an archive entry name under root, rejecting absolute
// paths and any traversal outside the root.
func secureJoin(root, name string) (string, bool) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) {
		return "", false
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", false
	}
	return filepath.Join(root, cleaned), true
}

func extractEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", target, err)
	}
	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", entry.Name, err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	return out.Close()
}

// Exists reports whether the file at path is present.
func (s *Store) Exists(path string) bool {
	return fileutil.Exists(path)
}

// RemoveArchive deletes an acquired archive file after extraction.
func (s *Store) RemoveArchive(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("remove archive", logging.String("archive", path), logging.Error(err))
	}
}

// CleanupTemp removes leftover .zip files from the content root, for example
// after a crash between acquisition and extraction.
func (s *Store) CleanupTemp() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".zip") {
			continue
		}
		_ = os.Remove(filepath.Join(s.root, entry.Name()))
	}
}
