package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/mapdiff/pkg/analysis"
	"github.com/vanderheijden86/mapdiff/pkg/debug"
	"github.com/vanderheijden86/mapdiff/pkg/metrics"
	"github.com/vanderheijden86/mapdiff/pkg/pipeline"
)

// SQLiteSchemaVersion is stored in the meta table.
const SQLiteSchemaVersion = 1

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		generation INTEGER NOT NULL,
		location TEXT NOT NULL,
		partition TEXT NOT NULL,
		baseline TEXT NOT NULL,
		requested INTEGER NOT NULL,
		fetched INTEGER NOT NULL,
		error TEXT,
		exported_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS badges (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		subject TEXT NOT NULL,
		name TEXT NOT NULL,
		winrate_delta REAL,
		pickrate_delta REAL,
		PRIMARY KEY (run_id, subject)
	)`,
	`CREATE TABLE IF NOT EXISTS rankings (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		subject TEXT NOT NULL,
		metric TEXT NOT NULL,
		side TEXT NOT NULL CHECK (side IN ('top', 'bottom')),
		position INTEGER NOT NULL,
		partition TEXT NOT NULL,
		display_name TEXT NOT NULL,
		delta REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS traits (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		kind TEXT NOT NULL CHECK (kind IN ('favored', 'punished', 'role')),
		tag TEXT NOT NULL,
		average_delta REAL NOT NULL,
		sample_count INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rankings_subject ON rankings(subject, metric)`,
	`CREATE INDEX IF NOT EXISTS idx_badges_subject ON badges(subject)`,
}

// ExportSQLite appends r to the SQLite database at path, creating the file
// and schema on first use. It returns the new run's row id.
func ExportSQLite(ctx context.Context, path string, r *pipeline.Report) (int64, error) {
	defer metrics.Timer(metrics.ExportWrite)()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create parent dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := createSQLiteSchema(ctx, db); err != nil {
		return 0, fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	runID, err := insertRun(ctx, tx, r)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	if err := insertBadges(ctx, tx, runID, r); err != nil {
		return 0, fmt.Errorf("insert badges: %w", err)
	}
	if err := insertRankings(ctx, tx, runID, r); err != nil {
		return 0, fmt.Errorf("insert rankings: %w", err)
	}
	if err := insertTraits(ctx, tx, runID, r); err != nil {
		return 0, fmt.Errorf("insert traits: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	debug.Log("export: run %d written to %s", runID, path)
	return runID, nil
}

func createSQLiteSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)`,
		fmt.Sprint(SQLiteSchemaVersion))
	return err
}

func insertRun(ctx context.Context, tx *sql.Tx, r *pipeline.Report) (int64, error) {
	var errText *string
	if r.Error != "" {
		errText = &r.Error
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (generation, location, partition, baseline, requested, fetched, error, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(r.Generation), r.Location, r.CurrentPartition, r.Baseline,
		r.Coverage.Requested, r.Coverage.Fetched, errText,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertBadges(ctx context.Context, tx *sql.Tx, runID int64, r *pipeline.Report) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO badges (run_id, subject, name, winrate_delta, pickrate_delta) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range r.Rows {
		b, ok := r.Badges[id]
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, runID, id, r.Name(id), b.WinRate, b.PickRate); err != nil {
			return err
		}
	}
	return nil
}

func insertRankings(ctx context.Context, tx *sql.Tx, runID int64, r *pipeline.Report) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rankings (run_id, subject, metric, side, position, partition, display_name, delta)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	write := func(subject, metric, side string, ranking analysis.Ranking) error {
		for i, e := range ranking {
			if _, err := stmt.ExecContext(ctx, runID, subject, metric, side, i+1, e.PartitionID, e.DisplayName, e.Delta); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range r.Rows {
		rp, ok := r.Ranked[id]
		if !ok {
			continue
		}
		for _, part := range []struct {
			metric, side string
			ranking      analysis.Ranking
		}{
			{"winrate", "top", rp.TopWinRate},
			{"winrate", "bottom", rp.BottomWinRate},
			{"pickrate", "top", rp.TopPickRate},
			{"pickrate", "bottom", rp.BottomPickRate},
		} {
			if err := write(id, part.metric, part.side, part.ranking); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertTraits(ctx context.Context, tx *sql.Tx, runID int64, r *pipeline.Report) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO traits (run_id, kind, tag, average_delta, sample_count) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range r.Traits.Favored {
		if _, err := stmt.ExecContext(ctx, runID, "favored", a.Tag, a.AverageDelta, a.SampleCount); err != nil {
			return err
		}
	}
	for _, a := range r.Traits.Punished {
		if _, err := stmt.ExecContext(ctx, runID, "punished", a.Tag, a.AverageDelta, a.SampleCount); err != nil {
			return err
		}
	}
	for _, a := range r.Roles {
		if _, err := stmt.ExecContext(ctx, runID, "role", a.Role, a.AverageDelta, a.SampleCount); err != nil {
			return err
		}
	}
	return nil
}
