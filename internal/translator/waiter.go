package translator

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultPollInterval is the delay between two status checks of a job.
const DefaultPollInterval = 5 * time.Second

// Clock abstracts time so polling can be driven without real delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// JobState is a step of the job lifecycle seen by the Waiter:
// submitted → in_progress → ended, where ended resolves into the outcome of
// the request.
type JobState string

const (
	StateSubmitted  JobState = "submitted"
	StateInProgress JobState = "in_progress"
	StateEnded      JobState = "ended"
)

type WaiterConfig struct {
	// Interval between status checks; DefaultPollInterval when zero.
	Interval time.Duration
	// Deadline bounds the wait after submission; zero waits forever.
	Deadline time.Duration
	Clock    Clock
	Archive  *Archive
	Logger   *slog.Logger
}

// Waiter runs one request as a batch job and blocks until the job ends.
type Waiter struct {
	svc      BatchService
	interval time.Duration
	deadline time.Duration
	clock    Clock
	archive  *Archive
	logger   *slog.Logger
}

func NewWaiter(svc BatchService, cfg WaiterConfig) *Waiter {
	w := &Waiter{
		svc:      svc,
		interval: cfg.Interval,
		deadline: cfg.Deadline,
		clock:    cfg.Clock,
		archive:  cfg.Archive,
		logger:   cfg.Logger,
	}
	if w.interval <= 0 {
		w.interval = DefaultPollInterval
	}
	if w.clock == nil {
		w.clock = SystemClock
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Do submits req, polls until the job ends and returns the succeeded result
// for req. Any other terminal outcome is an ErrServiceFailure.
func (w *Waiter) Do(ctx context.Context, req Request) (*Result, error) {
	jobID, err := w.svc.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: submit: %v", ErrServiceFailure, err)
	}
	log := w.logger.With(slog.String("service", w.svc.Name()), slog.String("batch_id", jobID))
	log.Info("batch created")

	state := StateSubmitted
	started := w.clock.Now()
	polls := 0
	canceling := false
	for state != StateEnded {
		status, err := w.svc.Status(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("%w: poll %s: %v", ErrServiceFailure, jobID, err)
		}
		if status == JobEnded {
			state = StateEnded
			break
		}
		state = StateInProgress
		if status == JobCanceling && !canceling {
			canceling = true
			log.Warn("batch is being canceled, waiting for it to end")
		}
		if w.deadline > 0 && w.clock.Now().Sub(started) >= w.deadline {
			return nil, fmt.Errorf("%w: batch %s still %s after %s", ErrDeadline, jobID, status, w.deadline)
		}
		if err := w.clock.Sleep(ctx, w.interval); err != nil {
			return nil, err
		}
		polls++
		log.Debug("batch polled", slog.String("status", string(status)), slog.Int("polls", polls))
	}
	log.Info("batch ended", slog.Int("polls", polls))

	results, err := w.svc.Results(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch results %s: %v", ErrServiceFailure, jobID, err)
	}

	var found *Result
	for i := range results {
		res := &results[i]
		if req.CustomID != "" && res.CustomID != req.CustomID {
			continue
		}
		switch res.Outcome {
		case OutcomeSucceeded:
			found = res
		case OutcomeErrored:
			return nil, fmt.Errorf("%w: request errored: %s", ErrServiceFailure, res.Error)
		case OutcomeExpired:
			return nil, fmt.Errorf("%w: request %s expired", ErrServiceFailure, res.CustomID)
		case OutcomeCanceled:
			return nil, fmt.Errorf("%w: request %s canceled", ErrServiceFailure, res.CustomID)
		default:
			return nil, fmt.Errorf("%w: unknown outcome %q", ErrServiceFailure, res.Outcome)
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no succeeded result in batch %s", ErrServiceFailure, jobID)
	}

	if path, err := w.archive.Save(w.clock.Now(), found.Raw); err != nil {
		log.Warn("failed to archive response", slog.String("error", err.Error()))
	} else if path != "" {
		log.Debug("response archived", slog.String("path", path))
	}
	return found, nil
}
