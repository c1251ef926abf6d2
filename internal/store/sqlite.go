package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/expose-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection; one connection keeps them applied and
	// serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id               TEXT PRIMARY KEY,
	address          TEXT,
	file_name        TEXT NOT NULL DEFAULT '',
	file_data        BLOB,
	external_task_id TEXT,
	status           TEXT NOT NULL DEFAULT 'uploaded',
	result           TEXT,
	neighborhood     TEXT,
	amenities        TEXT,
	error            TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateAnalysis(ctx context.Context, doc model.Document, address string) (*model.Analysis, error) {
	id := uuid.New().String()
	now := s.now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, address, file_name, file_data, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, nullString(address), doc.Filename, doc.Data, string(model.StatusUploaded), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert analysis")
	}

	return &model.Analysis{
		ID:        id,
		Address:   address,
		Document:  doc,
		Status:    model.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

const sqliteSelectAnalysis = `SELECT id, address, file_name, file_data, external_task_id, status, result, neighborhood, amenities, error, created_at, updated_at FROM analyses WHERE id = ?`

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*model.Analysis, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelectAnalysis, id)
	a, err := scanAnalysis(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s", id)
	}
	return a, nil
}

func (s *SQLiteStore) UpdateAnalysis(ctx context.Context, id string, u model.AnalysisUpdate) error {
	set, err := assignments(u)
	if err != nil {
		return eris.Wrap(err, "sqlite: update analysis")
	}

	clauses := make([]string, 0, len(set)+1)
	args := make([]any, 0, len(set)+2)
	for _, a := range set {
		clauses = append(clauses, a.col+" = ?")
		args = append(args, a.val)
	}
	clauses = append(clauses, "updated_at = ?")
	args = append(args, s.now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET `+strings.Join(clauses, ", ")+` WHERE id = ?`,
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update analysis %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) TransitionStatus(ctx context.Context, id string, to model.Status, cond model.TransitionCond) (bool, error) {
	if len(cond.From) == 0 && cond.StaleBefore.IsZero() {
		return false, eris.New("sqlite: transition: empty condition")
	}

	query := `UPDATE analyses SET status = ?, updated_at = ?`
	args := []any{string(to), s.now().UTC()}
	if cond.ClearTask {
		query += `, external_task_id = NULL, error = NULL`
	}
	query += ` WHERE id = ? AND (`
	args = append(args, id)

	var guards []string
	if len(cond.From) > 0 {
		guards = append(guards, `status IN (`+placeholders(len(cond.From))+`)`)
		args = append(args, statusArgs(cond.From)...)
	}
	if !cond.StaleBefore.IsZero() {
		guards = append(guards, `(status = ? AND (external_task_id IS NULL OR external_task_id = '') AND updated_at < ?)`)
		args = append(args, string(model.StatusProcessing), cond.StaleBefore.UTC())
	}
	query += strings.Join(guards, " OR ") + `)`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: transition analysis %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, address, status, created_at FROM analyses ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.AnalysisSummary
	for rows.Next() {
		var sum model.AnalysisSummary
		var address *string
		var status string
		if err := rows.Scan(&sum.ID, &address, &status, &sum.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis summary")
		}
		if address != nil {
			sum.Address = *address
		}
		sum.Status = model.Status(status)
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate analyses")
}

func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete analysis %s", id)
	}
	return checkRowsAffected(res, id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scannable) (*model.Analysis, error) {
	var a model.Analysis
	var address, taskID, result, neighborhood, amenities, errMsg *string
	var status string
	if err := row.Scan(
		&a.ID, &address, &a.Document.Filename, &a.Document.Data, &taskID, &status,
		&result, &neighborhood, &amenities, &errMsg, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = model.Status(status)
	if address != nil {
		a.Address = *address
	}
	if taskID != nil {
		a.ExternalTaskID = *taskID
	}
	if errMsg != nil {
		a.Error = *errMsg
	}
	if err := decodeEnrichment(&a, result, neighborhood, amenities); err != nil {
		return nil, err
	}
	return &a, nil
}
