package storage

// sqlite.go — persistencia de simulaciones.
//
// Estrategia:
//   - `runs`: una fila por simulación completada (rango, outcome, PnL).
//   - `marks`: las filas del event log, ligadas a su run por run_id.
//   - Todo se escribe al final del run en una sola transacción; durante
//     la simulación no se toca el disco.
//   - Prune automático al arrancar: runs con más de 90 días.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nikhilnd/kalshi-market-making/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    file         TEXT     NOT NULL,
    lower_bound  REAL     NOT NULL,
    upper_bound  REAL     NOT NULL,
    outcome      TEXT     NOT NULL,
    position     INTEGER  NOT NULL,
    realized_pnl REAL     NOT NULL,
    yes_count    INTEGER  NOT NULL DEFAULT 0,
    yes_cost     REAL     NOT NULL DEFAULT 0,
    no_count     INTEGER  NOT NULL DEFAULT 0,
    no_cost      REAL     NOT NULL DEFAULT 0,
    started_at   DATETIME NOT NULL,
    finished_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS marks (
    run_id    INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq       INTEGER NOT NULL,
    ts        DATETIME NOT NULL,
    pnl       REAL    NOT NULL,
    position  INTEGER NOT NULL,
    adj_pnl   REAL    NOT NULL,
    ref_price REAL    NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

const retentionRuns = 90 * 24 * time.Hour

// SQLiteStorage implementa ports.RunStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada,
// aplica el schema y limpia runs antiguos.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	cutoff := time.Now().Add(-retentionRuns)
	if _, err := db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: prune: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// SaveRun persists the run summary and all marks in one transaction.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run domain.RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (file, lower_bound, upper_bound, outcome, position, realized_pnl,
		                  yes_count, yes_cost, no_count, no_cost, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.File, run.Contract.Lower, run.Contract.Upper, run.Outcome.String(),
		run.Position, run.RealizedPnL,
		run.YesContracts, run.YesCost, run.NoContracts, run.NoCost,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("storage.SaveRun: run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO marks (run_id, seq, ts, pnl, position, adj_pnl, ref_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare marks: %w", err)
	}
	defer stmt.Close()

	for i, m := range run.Marks {
		if _, err := stmt.ExecContext(ctx, runID, i, m.Time, m.PnL, m.Position, m.AdjPnL, m.RefPrice); err != nil {
			return fmt.Errorf("storage.SaveRun: insert mark %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// LastRuns devuelve los últimos n runs, más reciente primero.
func (s *SQLiteStorage) LastRuns(ctx context.Context, n int) ([]domain.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file, lower_bound, upper_bound, outcome, position, realized_pnl,
		       yes_count, yes_cost, no_count, no_cost, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("storage.LastRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		var r domain.RunRecord
		var outcome string
		if err := rows.Scan(&r.File, &r.Contract.Lower, &r.Contract.Upper, &outcome,
			&r.Position, &r.RealizedPnL,
			&r.YesContracts, &r.YesCost, &r.NoContracts, &r.NoCost,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("storage.LastRuns: scan: %w", err)
		}
		if outcome == domain.Yes.String() {
			r.Outcome = domain.Yes
		} else {
			r.Outcome = domain.No
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close cierra la conexión.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
