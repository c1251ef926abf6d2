package analysis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/expose-cli/internal/metrics"
	"github.com/sells-group/expose-cli/internal/model"
	"github.com/sells-group/expose-cli/internal/normalize"
	"github.com/sells-group/expose-cli/pkg/manus"
	"github.com/sells-group/expose-cli/pkg/overpass"
)

// PollResult is the state reported by a poll. Progress and CurrentStep are
// advisory and only set while processing.
type PollResult struct {
	Status       model.Status        `json:"status"`
	Result       json.RawMessage     `json:"result,omitempty"`
	Neighborhood *model.Neighborhood `json:"neighborhood,omitempty"`
	Amenities    *overpass.Result    `json:"amenities,omitempty"`
	Progress     *float64            `json:"progress,omitempty"`
	CurrentStep  string              `json:"current_step,omitempty"`
	TaskURL      string              `json:"task_url,omitempty"`
	Error        string              `json:"error,omitempty"`
}

func completedResult(a *model.Analysis) *PollResult {
	return &PollResult{
		Status:       model.StatusCompleted,
		Result:       a.Result,
		Neighborhood: a.Neighborhood,
		Amenities:    a.Amenities,
	}
}

// Poll checks the task of a processing analysis and completes the record
// when its output is available. A completed record is returned as stored
// without contacting the task service.
func (s *Service) Poll(ctx context.Context, id string) (*PollResult, error) {
	const op = "poll"
	a, err := s.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, storeError(op, err)
	}

	if a.Status == model.StatusCompleted {
		return completedResult(a), nil
	}
	if a.Status != model.StatusProcessing || a.ExternalTaskID == "" {
		return &PollResult{Status: a.Status, Error: a.Error}, nil
	}

	processing := &PollResult{Status: model.StatusProcessing, TaskURL: s.TaskURL(a.ExternalTaskID)}
	if s.tasks == nil || !s.tasks.Configured() {
		return processing, nil
	}

	log := zap.L().With(zap.String("analysis_id", id), zap.String("task_id", a.ExternalTaskID))

	ts, err := s.taskStatus(ctx, a.ExternalTaskID)
	if err != nil {
		if eris.Is(err, errStatusTimeout) {
			log.Debug("poll: status check timed out")
			return processing, nil
		}
		return nil, newError(KindAdapterFailure, op, err)
	}

	switch {
	case ts.State == manus.StateCompleted && ts.Output != "":
		result, err := s.complete(ctx, id, ts)
		if err != nil {
			return nil, eris.Wrap(err, op)
		}
		a.Result = result
		return completedResult(a), nil
	case ts.State == manus.StateCompleted:
		log.Warn("poll: task completed without output")
	case ts.State == manus.StateFailed:
		cause := eris.Errorf("task %s failed upstream", a.ExternalTaskID)
		s.markFailed(ctx, id, "task", cause)
		return &PollResult{Status: model.StatusFailed, TaskURL: processing.TaskURL, Error: cause.Error()}, nil
	}

	processing.Progress = ts.Progress
	processing.CurrentStep = ts.CurrentStep
	return processing, nil
}

var errStatusTimeout = eris.New("task status check timed out")

// taskStatus queries the task under the status timeout. Running out of that
// budget, as opposed to the caller's, yields errStatusTimeout.
func (s *Service) taskStatus(ctx context.Context, taskID string) (*manus.TaskStatus, error) {
	sctx, cancel := context.WithTimeout(ctx, s.cfg.StatusTimeout)
	defer cancel()

	start := time.Now()
	ts, err := s.tasks.GetTask(sctx, taskID)
	metrics.ObserveCall("manus_get_task", start)
	if err != nil {
		if ctx.Err() == nil && sctx.Err() == context.DeadlineExceeded {
			return nil, eris.Wrapf(errStatusTimeout, "get task %s", taskID)
		}
		return nil, eris.Wrapf(err, "get task %s", taskID)
	}
	return ts, nil
}

// complete normalizes the task output and stores it with the completed
// status in one update.
func (s *Service) complete(ctx context.Context, id string, ts *manus.TaskStatus) (json.RawMessage, error) {
	out := normalize.Normalize(ts.Output, ts.Raw)
	if err := s.store.UpdateAnalysis(ctx, id, model.AnalysisUpdate{
		Result: out.Result,
		Status: model.Ptr(model.StatusCompleted),
	}); err != nil {
		return nil, eris.Wrapf(err, "store result for %s", id)
	}
	metrics.AnalysesCompleted.WithLabelValues(metrics.Bool(out.Structured)).Inc()
	zap.L().Info("analysis completed",
		zap.String("analysis_id", id),
		zap.Bool("structured", out.Structured),
	)
	return out.Result, nil
}
