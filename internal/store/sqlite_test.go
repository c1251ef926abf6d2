package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/expose-cli/internal/model"
	"github.com/sells-group/expose-cli/pkg/newsapi"
	"github.com/sells-group/expose-cli/pkg/overpass"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return start.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

var testDoc = model.Document{Filename: "expose-1.pdf", Data: []byte("%PDF-1.4 test")}

func TestSQLite_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateAnalysis(ctx, testDoc, "Hauptstr. 1, 10115 Berlin")
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, model.StatusUploaded, a.Status)

	got, err := st.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "Hauptstr. 1, 10115 Berlin", got.Address)
	assert.Equal(t, testDoc.Filename, got.Document.Filename)
	assert.Equal(t, testDoc.Data, got.Document.Data)
	assert.Equal(t, model.StatusUploaded, got.Status)
	assert.Empty(t, got.ExternalTaskID)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.Neighborhood)
	assert.Nil(t, got.Amenities)
}

func TestSQLite_CreateWithoutAddress(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateAnalysis(ctx, testDoc, "")
	require.NoError(t, err)

	got, err := st.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Address)
}

func TestSQLite_GetNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetAnalysis(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSQLite_UpdatePartial(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateAnalysis(ctx, testDoc, "Hauptstr. 1")
	require.NoError(t, err)

	amen := overpass.Group(overpass.Point{Lat: 52.5, Lon: 13.4}, []overpass.Amenity{
		{Type: "school", Name: "Grundschule", Category: overpass.CategorySchool, Distance: 120},
	}, time.Now())
	require.NoError(t, st.UpdateAnalysis(ctx, a.ID, model.AnalysisUpdate{Amenities: amen}))

	nb := &model.Neighborhood{
		Address: "Hauptstr. 1",
		City:    "Berlin",
		News:    []newsapi.Article{{Title: "Neuer Park eröffnet", Sentiment: newsapi.SentimentPositive}},
	}
	require.NoError(t, st.UpdateAnalysis(ctx, a.ID, model.AnalysisUpdate{Neighborhood: nb}))

	require.NoError(t, st.UpdateAnalysis(ctx, a.ID, model.AnalysisUpdate{
		ExternalTaskID: model.Ptr("task-1"),
		Status:         model.Ptr(model.StatusProcessing),
	}))

	got, err := st.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "task-1", got.ExternalTaskID)
	assert.Equal(t, model.StatusProcessing, got.Status)
	assert.Equal(t, "Hauptstr. 1", got.Address)
	require.NotNil(t, got.Amenities)
	require.Len(t, got.Amenities.Schools, 1)
	assert.Equal(t, "Grundschule", got.Amenities.Schools[0].Name)
	require.NotNil(t, got.Neighborhood)
	assert.Equal(t, "Berlin", got.Neighborhood.City)
	require.Len(t, got.Neighborhood.News, 1)
	assert.Equal(t, newsapi.SentimentPositive, got.Neighborhood.News[0].Sentiment)
}

func TestSQLite_UpdateResult(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateAnalysis(ctx, testDoc, "")
	require.NoError(t, err)

	result := json.RawMessage(`{"summary":"ok","pros":["Lage"]}`)
	require.NoError(t, st.UpdateAnalysis(ctx, a.ID, model.AnalysisUpdate{
		Result: result,
		Status: model.Ptr(model.StatusCompleted),
	}))

	got, err := st.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	assert.JSONEq(t, string(result), string(got.Result))
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestSQLite_UpdateRejectsInvalid(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateAnalysis(ctx, testDoc, "")
	require.NoError(t, err)

	err = st.UpdateAnalysis(ctx, a.ID, model.AnalysisUpdate{Status: model.Ptr(model.Status("queued"))})
	require.Error(t, err)

	err = st.UpdateAnalysis(ctx, a.ID, model.AnalysisUpdate{Result: json.RawMessage(`{bad`)})
	require.Error(t, err)
}

func TestSQLite_UpdateClearsWithEmptyString(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateAnalysis(ctx, testDoc, "")
	require.NoError(t, err)
	require.NoError(t, st.UpdateAnalysis(ctx, a.ID, model.AnalysisUpdate{Error: model.Ptr("boom")}))
	require.NoError(t, st.UpdateAnalysis(ctx, a.ID, model.AnalysisUpdate{Error: model.Ptr("")}))

	got, err := st.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Error)
}

func TestSQLite_UpdateNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateAnalysis(context.Background(), "missing", model.AnalysisUpdate{Address: model.Ptr("x")})
	assert.True(t, IsNotFound(err))
}

func TestSQLite_TransitionStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateAnalysis(ctx, testDoc, "")
	require.NoError(t, err)

	ok, err := st.TransitionStatus(ctx, a.ID, model.StatusProcessing, model.TransitionCond{
		From: []model.Status{model.StatusUploaded, model.StatusFailed},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// Second claim loses.
	ok, err = st.TransitionStatus(ctx, a.ID, model.StatusProcessing, model.TransitionCond{
		From: []model.Status{model.StatusUploaded, model.StatusFailed},
	})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := st.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, got.Status)
}

func TestSQLite_TransitionStatus_ClearTask(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateAnalysis(ctx, testDoc, "")
	require.NoError(t, err)
	require.NoError(t, st.UpdateAnalysis(ctx, a.ID, model.AnalysisUpdate{
		ExternalTaskID: model.Ptr("old-task"),
		Status:         model.Ptr(model.StatusFailed),
		Error:          model.Ptr("upstream failed"),
	}))

	ok, err := st.TransitionStatus(ctx, a.ID, model.StatusProcessing, model.TransitionCond{
		From:      []model.Status{model.StatusFailed},
		ClearTask: true,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := st.GetAnalysis(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ExternalTaskID)
	assert.Empty(t, got.Error)
}

func TestSQLite_TransitionStatus_Stale(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return base }

	a, err := st.CreateAnalysis(ctx, testDoc, "")
	require.NoError(t, err)
	ok, err := st.TransitionStatus(ctx, a.ID, model.StatusProcessing, model.TransitionCond{
		From: []model.Status{model.StatusUploaded},
	})
	require.NoError(t, err)
	require.True(t, ok)

	cond := model.TransitionCond{
		From:        []model.Status{model.StatusUploaded, model.StatusFailed},
		StaleBefore: base.Add(-10 * time.Minute),
	}

	// Fresh processing row is not reclaimed.
	ok, err = st.TransitionStatus(ctx, a.ID, model.StatusProcessing, cond)
	require.NoError(t, err)
	assert.False(t, ok)

	// An hour later the claim is stale.
	cond.StaleBefore = base.Add(50 * time.Minute)
	ok, err = st.TransitionStatus(ctx, a.ID, model.StatusProcessing, cond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLite_TransitionStatus_StaleWithTaskNotReclaimed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return base }

	a, err := st.CreateAnalysis(ctx, testDoc, "")
	require.NoError(t, err)
	require.NoError(t, st.UpdateAnalysis(ctx, a.ID, model.AnalysisUpdate{
		ExternalTaskID: model.Ptr("task-1"),
		Status:         model.Ptr(model.StatusProcessing),
	}))

	ok, err := st.TransitionStatus(ctx, a.ID, model.StatusProcessing, model.TransitionCond{
		From:        []model.Status{model.StatusUploaded},
		StaleBefore: base.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_TransitionStatus_EmptyCondition(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.TransitionStatus(context.Background(), "x", model.StatusProcessing, model.TransitionCond{})
	require.Error(t, err)
}

func TestSQLite_TransitionStatus_Concurrent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateAnalysis(ctx, testDoc, "")
	require.NoError(t, err)

	const workers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := st.TransitionStatus(ctx, a.ID, model.StatusProcessing, model.TransitionCond{
				From: []model.Status{model.StatusUploaded},
			})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestSQLite_ListAnalyses(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	st.now = stepClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	var ids []string
	for _, addr := range []string{"A", "B", "C"} {
		a, err := st.CreateAnalysis(ctx, testDoc, addr)
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}

	all, err := st.ListAnalyses(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, "C", all[0].Address)
	assert.Equal(t, ids[0], all[2].ID)

	two, err := st.ListAnalyses(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestSQLite_DeleteAnalysis(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateAnalysis(ctx, testDoc, "")
	require.NoError(t, err)
	require.NoError(t, st.DeleteAnalysis(ctx, a.ID))

	_, err = st.GetAnalysis(ctx, a.ID)
	assert.True(t, IsNotFound(err))

	err = st.DeleteAnalysis(ctx, a.ID)
	assert.True(t, IsNotFound(err))
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}
