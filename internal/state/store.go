package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"voicebox/internal/config"
)

// Store manages persisted voicebox state backed by SQLite: the current pack
// location plus a record of every import attempt.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the state database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "voicebox.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

const currentPackKey = "current_pack_path"

// SetCurrentPackPath persists the directory of the active extracted pack.
func (s *Store) SetCurrentPackPath(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		currentPackKey,
		path,
	)
	if err != nil {
		return fmt.Errorf("set current pack path: %w", err)
	}
	return nil
}

// CurrentPackPath returns the persisted pack location, or "" when none is set.
func (s *Store) CurrentPackPath(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, currentPackKey)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get current pack path: %w", err)
	}
	return value, nil
}

// ClearCurrentPackPath removes the persisted pack location.
func (s *Store) ClearCurrentPackPath(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, currentPackKey); err != nil {
		return fmt.Errorf("clear current pack path: %w", err)
	}
	return nil
}

// BeginImport records a new running import attempt.
func (s *Store) BeginImport(ctx context.Context, source string, sourceType SourceType) (*ImportRecord, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO imports (source, source_type, status, created_at) VALUES (?, ?, ?, ?)`,
		source,
		string(sourceType),
		StatusRunning,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert import: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// FinishImport marks an attempt as succeeded or failed with its outcome.
func (s *Store) FinishImport(ctx context.Context, id int64, status Status, packTitle, location, errorMessage string) error {
	if status != StatusSucceeded && status != StatusFailed {
		return fmt.Errorf("finish import: invalid terminal status %q", status)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE imports
         SET status = ?, pack_title = ?, location = ?, error_message = ?, finished_at = ?
         WHERE id = ?`,
		status,
		nullableString(packTitle),
		nullableString(location),
		nullableString(errorMessage),
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish import: %w", err)
	}
	return nil
}

// GetByID fetches an import record by identifier; nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*ImportRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+importColumns+` FROM imports WHERE id = ?`, id)
	record, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get import: %w", err)
	}
	return record, nil
}

// List returns import records, newest first, filtered by optional statuses.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*ImportRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + importColumns + ` FROM imports`
	orderClause := ` ORDER BY created_at DESC, id DESC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	defer rows.Close()

	var records []*ImportRecord
	for rows.Next() {
		record, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// FailRunning marks any still-running imports as failed, used on daemon
// startup to settle attempts interrupted by a crash.
func (s *Store) FailRunning(ctx context.Context, message string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE imports SET status = ?, error_message = ?, finished_at = ? WHERE status = ?`,
		StatusFailed,
		message,
		now,
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail running imports: %w", err)
	}
	return res.RowsAffected()
}

// ClearHistory removes finished import records, keeping any running attempt.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM imports WHERE status != ?`, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of import records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM imports GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("import stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates import history for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusRunning:
			health.Running += count
		case StatusSucceeded:
			health.Succeeded += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the state database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("state database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat state database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("state database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("state database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping state database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'imports'")
	if err := row.Scan(&tableName); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM imports")
		if err := row.Scan(&health.TotalImports); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count imports: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

const importColumns = "id, source, source_type, status, pack_title, location, error_message, created_at, finished_at"

func scanImport(scanner interface{ Scan(dest ...any) error }) (*ImportRecord, error) {
	var (
		id          int64
		source      string
		sourceType  string
		statusStr   string
		packTitle   sql.NullString
		location    sql.NullString
		errMessage  sql.NullString
		createdRaw  string
		finishedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&source,
		&sourceType,
		&statusStr,
		&packTitle,
		&location,
		&errMessage,
		&createdRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	record := &ImportRecord{
		ID:           id,
		Source:       source,
		SourceType:   SourceType(sourceType),
		Status:       Status(statusStr),
		PackTitle:    packTitle.String,
		Location:     location.String,
		ErrorMessage: errMessage.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			record.FinishedAt = &finished
		}
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
