package model

import (
	"encoding/json"
	"time"

	"github.com/sells-group/expose-cli/pkg/newsapi"
	"github.com/sells-group/expose-cli/pkg/overpass"
)

// Status is the lifecycle state of an analysis.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Document is the uploaded listing PDF.
type Document struct {
	Filename string `json:"file_name"`
	Data     []byte `json:"-"`
}

// Empty reports whether there is no payload.
func (d Document) Empty() bool {
	return len(d.Data) == 0
}

// Analysis is one submitted document and everything learned about it.
type Analysis struct {
	ID             string           `json:"id"`
	Address        string           `json:"address,omitempty"`
	Document       Document         `json:"document"`
	ExternalTaskID string           `json:"external_task_id,omitempty"`
	Status         Status           `json:"status"`
	Result         json.RawMessage  `json:"result,omitempty"`
	Neighborhood   *Neighborhood    `json:"neighborhood,omitempty"`
	Amenities      *overpass.Result `json:"amenities,omitempty"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Location is a resolved coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Neighborhood is the location enrichment: the resolved address and local news.
type Neighborhood struct {
	Address   string            `json:"address"`
	City      string            `json:"city,omitempty"`
	Postcode  string            `json:"postcode,omitempty"`
	Location  *Location         `json:"location,omitempty"`
	News      []newsapi.Article `json:"news"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// AnalysisSummary is the list view of an analysis.
type AnalysisSummary struct {
	ID        string    `json:"id"`
	Address   string    `json:"address,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// AnalysisUpdate names the fields to change. Nil fields are left untouched,
// so writers of disjoint fields never clobber each other.
type AnalysisUpdate struct {
	Address        *string
	ExternalTaskID *string
	Status         *Status
	Result         json.RawMessage
	Neighborhood   *Neighborhood
	Amenities      *overpass.Result
	Error          *string
}

// Empty reports whether the update names no fields.
func (u AnalysisUpdate) Empty() bool {
	return u.Address == nil && u.ExternalTaskID == nil && u.Status == nil &&
		u.Result == nil && u.Neighborhood == nil && u.Amenities == nil && u.Error == nil
}

// TransitionCond guards a status compare-and-set.
type TransitionCond struct {
	// From lists the statuses the row may currently hold.
	From []Status
	// StaleBefore, when non-zero, also admits a processing row with no task
	// id whose last update is older than this instant.
	StaleBefore time.Time
	// ClearTask resets the task id and error as part of the transition.
	ClearTask bool
}

// Ptr returns a pointer to v, for building updates.
func Ptr[T any](v T) *T {
	return &v
}
