package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/expose-cli/internal/model"
	"github.com/sells-group/expose-cli/pkg/overpass"
)

// DefaultListLimit caps ListAnalyses when no limit is given.
const DefaultListLimit = 100

// ErrNotFound is returned when no analysis has the requested id.
var ErrNotFound = eris.New("analysis not found")

// Store defines the persistence interface for analyses.
type Store interface {
	CreateAnalysis(ctx context.Context, doc model.Document, address string) (*model.Analysis, error)
	GetAnalysis(ctx context.Context, id string) (*model.Analysis, error)
	// UpdateAnalysis writes only the fields named in u.
	UpdateAnalysis(ctx context.Context, id string, u model.AnalysisUpdate) error
	// TransitionStatus atomically moves the row to status `to` if it
	// satisfies cond, reporting whether it did.
	TransitionStatus(ctx context.Context, id string, to model.Status, cond model.TransitionCond) (bool, error)
	// ListAnalyses returns summaries, newest first.
	ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisSummary, error)
	DeleteAnalysis(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return eris.Is(err, ErrNotFound)
}

func notFound(id string) error {
	return eris.Wrapf(ErrNotFound, "analysis %s", id)
}

// assignment is one column = value pair of a partial update.
type assignment struct {
	col string
	val any
}

// assignments turns the non-nil fields of u into column assignments. Empty
// strings are stored as NULL; JSON documents are stored as text.
func assignments(u model.AnalysisUpdate) ([]assignment, error) {
	var out []assignment
	if u.Address != nil {
		out = append(out, assignment{"address", nullString(*u.Address)})
	}
	if u.ExternalTaskID != nil {
		out = append(out, assignment{"external_task_id", nullString(*u.ExternalTaskID)})
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return nil, eris.Errorf("invalid status %q", *u.Status)
		}
		out = append(out, assignment{"status", string(*u.Status)})
	}
	if u.Result != nil {
		if !json.Valid(u.Result) {
			return nil, eris.New("result is not valid json")
		}
		out = append(out, assignment{"result", string(u.Result)})
	}
	if u.Neighborhood != nil {
		b, err := json.Marshal(u.Neighborhood)
		if err != nil {
			return nil, eris.Wrap(err, "marshal neighborhood")
		}
		out = append(out, assignment{"neighborhood", string(b)})
	}
	if u.Amenities != nil {
		b, err := json.Marshal(u.Amenities)
		if err != nil {
			return nil, eris.Wrap(err, "marshal amenities")
		}
		out = append(out, assignment{"amenities", string(b)})
	}
	if u.Error != nil {
		out = append(out, assignment{"error", nullString(*u.Error)})
	}
	return out, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func statusArgs(from []model.Status) []any {
	args := make([]any, len(from))
	for i, s := range from {
		args[i] = string(s)
	}
	return args
}

// decodeEnrichment unmarshals the stored JSON columns into a.
func decodeEnrichment(a *model.Analysis, result, neighborhood, amenities *string) error {
	if result != nil && *result != "" {
		a.Result = json.RawMessage(*result)
	}
	if neighborhood != nil && *neighborhood != "" {
		a.Neighborhood = &model.Neighborhood{}
		if err := json.Unmarshal([]byte(*neighborhood), a.Neighborhood); err != nil {
			return eris.Wrap(err, "unmarshal neighborhood")
		}
	}
	if amenities != nil && *amenities != "" {
		a.Amenities = &overpass.Result{}
		if err := json.Unmarshal([]byte(*amenities), a.Amenities); err != nil {
			return eris.Wrap(err, "unmarshal amenities")
		}
	}
	return nil
}
