package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/expose-cli/internal/db"
	"github.com/sells-group/expose-cli/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	now     func() time.Time
}

// NewPostgres connects to Postgres and returns a store backed by the pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	address          TEXT,
	file_name        TEXT NOT NULL DEFAULT '',
	file_data        BYTEA,
	external_task_id TEXT,
	status           TEXT NOT NULL DEFAULT 'uploaded',
	result           JSONB,
	neighborhood     JSONB,
	amenities        JSONB,
	error            TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_analyses_status ON analyses(status);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);
`

func (s *PostgresStore) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateAnalysis(ctx context.Context, doc model.Document, address string) (*model.Analysis, error) {
	id := uuid.New().String()
	now := s.clock()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO analyses (id, address, file_name, file_data, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, nullString(address), doc.Filename, doc.Data, string(model.StatusUploaded), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert analysis")
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

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*model.Analysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, address, file_name, file_data, external_task_id, status, result::text, neighborhood::text, amenities::text, error, created_at, updated_at FROM analyses WHERE id = $1`,
		id,
	)
	a, err := scanAnalysis(row)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get analysis %s", id)
	}
	return a, nil
}

func (s *PostgresStore) UpdateAnalysis(ctx context.Context, id string, u model.AnalysisUpdate) error {
	set, err := assignments(u)
	if err != nil {
		return eris.Wrap(err, "postgres: update analysis")
	}

	clauses := make([]string, 0, len(set)+1)
	args := make([]any, 0, len(set)+2)
	for _, a := range set {
		args = append(args, a.val)
		clauses = append(clauses, fmt.Sprintf("%s = $%d%s", a.col, len(args), jsonCast(a.col)))
	}
	args = append(args, s.clock())
	clauses = append(clauses, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE analyses SET %s WHERE id = $%d`, strings.Join(clauses, ", "), len(args)),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update analysis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// jsonCast casts text parameters for JSONB columns.
func jsonCast(col string) string {
	switch col {
	case "result", "neighborhood", "amenities":
		return "::jsonb"
	}
	return ""
}

func (s *PostgresStore) TransitionStatus(ctx context.Context, id string, to model.Status, cond model.TransitionCond) (bool, error) {
	if len(cond.From) == 0 && cond.StaleBefore.IsZero() {
		return false, eris.New("postgres: transition: empty condition")
	}

	args := []any{string(to), s.clock(), id}
	query := `UPDATE analyses SET status = $1, updated_at = $2`
	if cond.ClearTask {
		query += `, external_task_id = NULL, error = NULL`
	}
	query += ` WHERE id = $3 AND (`

	var guards []string
	if len(cond.From) > 0 {
		from := make([]string, len(cond.From))
		for i, st := range cond.From {
			from[i] = string(st)
		}
		args = append(args, from)
		guards = append(guards, fmt.Sprintf(`status = ANY($%d)`, len(args)))
	}
	if !cond.StaleBefore.IsZero() {
		args = append(args, string(model.StatusProcessing), cond.StaleBefore.UTC())
		guards = append(guards, fmt.Sprintf(
			`(status = $%d AND (external_task_id IS NULL OR external_task_id = '') AND updated_at < $%d)`,
			len(args)-1, len(args)))
	}
	query += strings.Join(guards, " OR ") + `)`

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: transition analysis %s", id)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, address, status, created_at FROM analyses ORDER BY created_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list analyses")
	}
	defer rows.Close()

	var out []model.AnalysisSummary
	for rows.Next() {
		var sum model.AnalysisSummary
		var address *string
		var status string
		if err := rows.Scan(&sum.ID, &address, &status, &sum.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan analysis summary")
		}
		if address != nil {
			sum.Address = *address
		}
		sum.Status = model.Status(status)
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate analyses")
}

func (s *PostgresStore) DeleteAnalysis(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete analysis %s", id)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}
