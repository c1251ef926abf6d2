package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/expose-cli/internal/metrics"
	"github.com/sells-group/expose-cli/internal/model"
	"github.com/sells-group/expose-cli/pkg/manus"
)

// StartResult is the state after a start call.
type StartResult struct {
	Status  model.Status `json:"status"`
	TaskID  string       `json:"task_id,omitempty"`
	TaskURL string       `json:"task_url,omitempty"`
}

func (s *Service) current(a *model.Analysis) *StartResult {
	return &StartResult{
		Status:  a.Status,
		TaskID:  a.ExternalTaskID,
		TaskURL: s.TaskURL(a.ExternalTaskID),
	}
}

// Start submits the analysis document to the task service. A record that
// is already processing, or that another caller claims first, is returned
// unchanged. The record is claimed before any external call; once claimed,
// every path that does not record a task id leaves it failed.
func (s *Service) Start(ctx context.Context, id, address string) (*StartResult, error) {
	const op = "start"
	a, err := s.store.GetAnalysis(ctx, id)
	if err != nil {
		return nil, storeError(op, err)
	}

	staleBefore := s.now().Add(-s.cfg.StaleProcessing)
	switch a.Status {
	case model.StatusCompleted:
		return s.current(a), nil
	case model.StatusProcessing:
		if a.ExternalTaskID != "" || !a.UpdatedAt.Before(staleBefore) {
			return s.current(a), nil
		}
	}

	if s.tasks == nil || !s.tasks.Configured() {
		return nil, newError(KindUnavailable, op, manus.ErrNotConfigured)
	}
	if a.Document.Empty() {
		return nil, newError(KindPreconditionFailed, op, eris.Errorf("analysis %s has no document", id))
	}

	claimed, err := s.store.TransitionStatus(ctx, id, model.StatusProcessing, model.TransitionCond{
		From:        []model.Status{model.StatusUploaded, model.StatusFailed},
		StaleBefore: staleBefore,
		ClearTask:   true,
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	if !claimed {
		fresh, err := s.store.GetAnalysis(ctx, id)
		if err != nil {
			return nil, storeError(op, err)
		}
		return s.current(fresh), nil
	}
	metrics.AnalysesStarted.Inc()

	log := zap.L().With(zap.String("analysis_id", id))
	log.Info("analysis started")

	var taskID string
	defer func() {
		if r := recover(); r != nil {
			if taskID == "" {
				s.markFailed(ctx, id, "panic", fmt.Errorf("panic: %v", r))
			}
			panic(r)
		}
	}()

	addr := strings.TrimSpace(address)
	if addr != "" && addr != a.Address {
		if err := s.store.UpdateAnalysis(ctx, id, model.AnalysisUpdate{Address: &addr}); err != nil {
			log.Warn("analysis: persist address", zap.Error(err))
		}
	}
	if addr == "" {
		addr = a.Address
	}

	enr := s.enrich(ctx, id, addr)
	if !enr.empty() {
		if err := s.store.UpdateAnalysis(ctx, id, model.AnalysisUpdate{
			Neighborhood: enr.neighborhood,
			Amenities:    enr.amenities,
		}); err != nil {
			log.Warn("analysis: persist enrichment", zap.Error(err))
		}
	}

	taskID, stage, err := s.submit(ctx, a.Document, manus.PromptContext{Address: addr, News: enr.headlines()})
	if err != nil {
		s.markFailed(ctx, id, stage, err)
		return nil, newError(KindAdapterFailure, op, err)
	}

	if err := s.store.UpdateAnalysis(ctx, id, model.AnalysisUpdate{ExternalTaskID: &taskID}); err != nil {
		recordErr := eris.Wrapf(err, "record task %s", taskID)
		taskID = ""
		s.markFailed(ctx, id, "record_task", recordErr)
		return nil, eris.Wrap(recordErr, op)
	}
	log.Info("analysis task created", zap.String("task_id", taskID))

	res := &StartResult{Status: model.StatusProcessing, TaskID: taskID, TaskURL: s.TaskURL(taskID)}

	// Short documents can finish within the request.
	ts, err := s.taskStatus(ctx, taskID)
	if err != nil {
		log.Debug("analysis: immediate status check", zap.String("task_id", taskID), zap.Error(err))
		return res, nil
	}
	if ts.State == manus.StateCompleted && ts.Output != "" {
		if _, err := s.complete(ctx, id, ts); err != nil {
			log.Warn("analysis: complete after start", zap.Error(err))
			return res, nil
		}
		res.Status = model.StatusCompleted
	}
	return res, nil
}

// submit uploads the document and creates the task. The returned stage
// names the step that failed.
func (s *Service) submit(ctx context.Context, doc model.Document, pc manus.PromptContext) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	fileID, err := s.tasks.UploadFile(ctx, doc.Filename, doc.Data)
	metrics.ObserveCall("manus_upload", start)
	if err != nil {
		return "", "upload", eris.Wrap(err, "upload document")
	}

	start = time.Now()
	taskID, err := s.tasks.CreateTask(ctx, fileID, pc)
	metrics.ObserveCall("manus_create_task", start)
	if err != nil {
		return "", "create_task", eris.Wrap(err, "create task")
	}
	if taskID == "" {
		return "", "create_task", eris.New("create task: no task id returned")
	}
	return taskID, "", nil
}
