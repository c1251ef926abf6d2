package analysis

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/expose-cli/internal/model"
)

const (
	defaultWaitInitial = 2 * time.Second
	defaultWaitCap     = 15 * time.Second
	defaultWaitTimeout = 30 * time.Minute
)

// WaitOption configures Wait.
type WaitOption func(*waitConfig)

type waitConfig struct {
	initial  time.Duration
	cap      time.Duration
	timeout  time.Duration
	onStatus func(*PollResult)
}

// WithWaitInterval overrides the initial delay between polls.
func WithWaitInterval(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.initial = d }
}

// WithWaitCap overrides the maximum delay between polls.
func WithWaitCap(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.cap = d }
}

// WithWaitTimeout overrides the default timeout (applied only if the parent
// context has no deadline).
func WithWaitTimeout(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.timeout = d }
}

// WithProgress is called with every intermediate poll result.
func WithProgress(fn func(*PollResult)) WaitOption {
	return func(c *waitConfig) { c.onStatus = fn }
}

// Wait polls id until it completes or fails, or the context expires. The
// delay doubles from 2s up to 15s. Adapter failures end the wait.
func (s *Service) Wait(ctx context.Context, id string, opts ...WaitOption) (*PollResult, error) {
	cfg := waitConfig{
		initial: defaultWaitInitial,
		cap:     defaultWaitCap,
		timeout: defaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	interval := cfg.initial
	for {
		res, err := s.Poll(ctx, id)
		if err != nil {
			return nil, err
		}
		switch res.Status {
		case model.StatusCompleted, model.StatusFailed:
			return res, nil
		case model.StatusUploaded:
			return res, newError(KindPreconditionFailed, "wait", eris.Errorf("analysis %s was not started", id))
		}
		if cfg.onStatus != nil {
			cfg.onStatus(res)
		}

		select {
		case <-ctx.Done():
			return res, eris.Wrapf(ctx.Err(), "wait for analysis %s", id)
		case <-time.After(interval):
		}

		interval *= 2
		if interval > cfg.cap {
			interval = cfg.cap
		}
	}
}
