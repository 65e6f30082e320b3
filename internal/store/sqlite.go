package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ippclub/craftsync/internal/model"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore keeps install records and run history
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) craftsync.db under dataPath
func NewSQLiteStore(dataPath string, logger *zap.Logger) (*SQLiteStore, error) {
	dbPath := filepath.Join(dataPath, "craftsync.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(model.Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertInstall updates or inserts the record of a version
func (s *SQLiteStore) UpsertInstall(install *model.DBInstall) error {
	query := `
		INSERT INTO installs (version, base_path, stage, libraries_completed, libraries_total,
			assets_completed, assets_total, error_kind, error_message, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET
			base_path = excluded.base_path,
			stage = excluded.stage,
			libraries_completed = excluded.libraries_completed,
			libraries_total = excluded.libraries_total,
			assets_completed = excluded.assets_completed,
			assets_total = excluded.assets_total,
			error_kind = excluded.error_kind,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at
		RETURNING id
	`

	install.UpdatedAt = time.Now()
	err := s.db.QueryRow(
		query,
		install.Version,
		install.BasePath,
		install.Stage,
		install.LibrariesCompleted,
		install.LibrariesTotal,
		install.AssetsCompleted,
		install.AssetsTotal,
		install.ErrorKind,
		install.ErrorMessage,
		install.UpdatedAt,
	).Scan(&install.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert install: %w", err)
	}

	return nil
}

const installColumns = `id, version, base_path, stage, libraries_completed, libraries_total,
	assets_completed, assets_total, error_kind, error_message, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanInstall(row scanner) (*model.DBInstall, error) {
	install := &model.DBInstall{}
	err := row.Scan(
		&install.ID,
		&install.Version,
		&install.BasePath,
		&install.Stage,
		&install.LibrariesCompleted,
		&install.LibrariesTotal,
		&install.AssetsCompleted,
		&install.AssetsTotal,
		&install.ErrorKind,
		&install.ErrorMessage,
		&install.CreatedAt,
		&install.UpdatedAt,
	)
	return install, err
}

// GetInstall gets the record of a version, or nil if it was never installed
func (s *SQLiteStore) GetInstall(version string) (*model.DBInstall, error) {
	query := `SELECT ` + installColumns + ` FROM installs WHERE version = ?`
	install, err := scanInstall(s.db.QueryRow(query, version))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get install: %w", err)
	}
	return install, nil
}

// ListInstalls gets all install records, most recently updated first
func (s *SQLiteStore) ListInstalls() ([]*model.DBInstall, error) {
	query := `SELECT ` + installColumns + ` FROM installs ORDER BY updated_at DESC`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query installs: %w", err)
	}
	defer rows.Close()

	var installs []*model.DBInstall
	for rows.Next() {
		install, err := scanInstall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan install: %w", err)
		}
		installs = append(installs, install)
	}

	return installs, rows.Err()
}

// AddRun records the start of a pipeline run
func (s *SQLiteStore) AddRun(run *model.DBRun) error {
	query := `
		INSERT INTO runs (run_id, version, stage, started_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`

	err := s.db.QueryRow(query, run.RunID, run.Version, run.Stage, run.StartedAt).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("failed to add run: %w", err)
	}
	return nil
}

// FinishRun records the terminal stage and error of a run. The version is
// rewritten too since a run started through an alias only learns its id later.
func (s *SQLiteStore) FinishRun(run *model.DBRun) error {
	now := time.Now()
	run.FinishedAt = &now

	query := `UPDATE runs SET version = ?, stage = ?, error_kind = ?, error_message = ?, finished_at = ? WHERE run_id = ?`
	_, err := s.db.Exec(query, run.Version, run.Stage, run.ErrorKind, run.ErrorMessage, run.FinishedAt, run.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// ListRuns gets the runs of a version, newest first. An empty version lists all.
func (s *SQLiteStore) ListRuns(version string, limit int) ([]*model.DBRun, error) {
	query := `SELECT id, run_id, version, stage, error_kind, error_message, started_at, finished_at FROM runs`
	var args []any
	if version != "" {
		query += ` WHERE version = ?`
		args = append(args, version)
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.DBRun
	for rows.Next() {
		run := &model.DBRun{}
		var finished sql.NullTime
		err := rows.Scan(
			&run.ID,
			&run.RunID,
			&run.Version,
			&run.Stage,
			&run.ErrorKind,
			&run.ErrorMessage,
			&run.StartedAt,
			&finished,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			run.FinishedAt = &finished.Time
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
