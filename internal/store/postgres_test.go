package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/expose-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &PostgresStore{pool: mock, now: func() time.Time { return now }}
	return s, mock
}

var analysisColumns = []string{
	"id", "address", "file_name", "file_data", "external_task_id", "status",
	"result", "neighborhood", "amenities", "error", "created_at", "updated_at",
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS analyses`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateAnalysis(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO analyses`).
		WithArgs(pgxmock.AnyArg(), "Hauptstr. 1", "expose-1.pdf", []byte("%PDF"), "uploaded", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	a, err := s.CreateAnalysis(context.Background(),
		model.Document{Filename: "expose-1.pdf", Data: []byte("%PDF")}, "Hauptstr. 1")
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, model.StatusUploaded, a.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateAnalysis_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO analyses`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "x.pdf", pgxmock.AnyArg(), "uploaded", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	_, err := s.CreateAnalysis(context.Background(), model.Document{Filename: "x.pdf"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert analysis")
	assert.Contains(t, err.Error(), "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAnalysis(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	addr := "Hauptstr. 1"
	task := "task-9"
	result := `{"summary":"gut"}`

	mock.ExpectQuery(`SELECT id, address, file_name, file_data, external_task_id, status, result::text, neighborhood::text, amenities::text, error, created_at, updated_at FROM analyses WHERE id = \$1`).
		WithArgs("a1").
		WillReturnRows(pgxmock.NewRows(analysisColumns).AddRow(
			"a1", &addr, "expose-1.pdf", []byte("%PDF"), &task, "processing",
			&result, (*string)(nil), (*string)(nil), (*string)(nil), ts, ts,
		))

	a, err := s.GetAnalysis(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, "Hauptstr. 1", a.Address)
	assert.Equal(t, "task-9", a.ExternalTaskID)
	assert.Equal(t, model.StatusProcessing, a.Status)
	assert.JSONEq(t, result, string(a.Result))
	assert.Nil(t, a.Neighborhood)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetAnalysis_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM analyses WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetAnalysis(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAnalysis(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE analyses SET external_task_id = \$1, status = \$2, result = \$3::jsonb, updated_at = \$4 WHERE id = \$5`).
		WithArgs("task-1", "completed", `{"a":1}`, pgxmock.AnyArg(), "a1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateAnalysis(context.Background(), "a1", model.AnalysisUpdate{
		ExternalTaskID: model.Ptr("task-1"),
		Status:         model.Ptr(model.StatusCompleted),
		Result:         []byte(`{"a":1}`),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAnalysis_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE analyses SET address = \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs("x", pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateAnalysis(context.Background(), "gone", model.AnalysisUpdate{Address: model.Ptr("x")})
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransitionStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	stale := time.Date(2025, 3, 1, 11, 50, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE analyses SET status = \$1, updated_at = \$2, external_task_id = NULL, error = NULL WHERE id = \$3 AND \(status = ANY\(\$4\) OR \(status = \$5 AND .* updated_at < \$6\)\)`).
		WithArgs("processing", pgxmock.AnyArg(), "a1", []string{"uploaded", "failed"}, "processing", stale).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := s.TransitionStatus(context.Background(), "a1", model.StatusProcessing, model.TransitionCond{
		From:        []model.Status{model.StatusUploaded, model.StatusFailed},
		StaleBefore: stale,
		ClearTask:   true,
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransitionStatus_Lost(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE analyses SET status = \$1`).
		WithArgs("completed", pgxmock.AnyArg(), "a1", []string{"processing"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := s.TransitionStatus(context.Background(), "a1", model.StatusCompleted, model.TransitionCond{
		From: []model.Status{model.StatusProcessing},
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAnalyses(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	addr := "Hauptstr. 1"

	mock.ExpectQuery(`SELECT id, address, status, created_at FROM analyses ORDER BY created_at DESC`).
		WithArgs(DefaultListLimit).
		WillReturnRows(pgxmock.NewRows([]string{"id", "address", "status", "created_at"}).
			AddRow("a2", &addr, "completed", ts).
			AddRow("a1", (*string)(nil), "uploaded", ts.Add(-time.Hour)))

	list, err := s.ListAnalyses(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID)
	assert.Equal(t, "Hauptstr. 1", list[0].Address)
	assert.Empty(t, list[1].Address)
	assert.Equal(t, model.StatusUploaded, list[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteAnalysis(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM analyses WHERE id = \$1`).
		WithArgs("a1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM analyses WHERE id = \$1`).
		WithArgs("a1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.DeleteAnalysis(context.Background(), "a1"))
	assert.True(t, IsNotFound(s.DeleteAnalysis(context.Background(), "a1")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
