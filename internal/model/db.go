package model

import (
	"time"
)

// DBInstall is the latest known state of one installed version
type DBInstall struct {
	ID                 int64     `db:"id"`
	Version            string    `db:"version"`
	BasePath           string    `db:"base_path"`
	Stage              Stage     `db:"stage"`
	LibrariesCompleted int64     `db:"libraries_completed"`
	LibrariesTotal     int64     `db:"libraries_total"`
	AssetsCompleted    int64     `db:"assets_completed"`
	AssetsTotal        int64     `db:"assets_total"`
	ErrorKind          string    `db:"error_kind"`
	ErrorMessage       string    `db:"error_message"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// DBRun is one execution of the pipeline
type DBRun struct {
	ID           int64      `db:"id" json:"-"`
	RunID        string     `db:"run_id" json:"runId"`
	Version      string     `db:"version" json:"version"`
	Stage        Stage      `db:"stage" json:"stage"`
	ErrorKind    string     `db:"error_kind" json:"errorKind,omitempty"`
	ErrorMessage string     `db:"error_message" json:"errorMessage,omitempty"`
	StartedAt    time.Time  `db:"started_at" json:"startedAt"`
	FinishedAt   *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
}

// Schema contains the SQL schema for the database
const Schema = `
CREATE TABLE IF NOT EXISTS installs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    version TEXT NOT NULL UNIQUE,
    base_path TEXT NOT NULL,
    stage TEXT NOT NULL,
    libraries_completed INTEGER NOT NULL DEFAULT 0,
    libraries_total INTEGER NOT NULL DEFAULT 0,
    assets_completed INTEGER NOT NULL DEFAULT 0,
    assets_total INTEGER NOT NULL DEFAULT 0,
    error_kind TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL UNIQUE,
    version TEXT NOT NULL,
    stage TEXT NOT NULL,
    error_kind TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_installs_version ON installs(version);
CREATE INDEX IF NOT EXISTS idx_runs_version ON runs(version);
`
