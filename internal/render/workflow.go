// Package render submits timelines to the rendering service and polls them to a terminal outcome.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/promoforge/internal/metrics"
	"github.com/JakeFAU/promoforge/internal/promo"
	"github.com/JakeFAU/promoforge/internal/shotstack"
)

// RenderingHint is surfaced while the upstream reports the rendering status.
const RenderingHint = "Rendering may take 10–30s"

const sideEffectTimeout = 5 * time.Second

// Outcome is how a render request ended from the caller's point of view.
type Outcome string

// Outcome values.
const (
	OutcomeDone             Outcome = "done"
	OutcomeFailed           Outcome = "failed"
	OutcomeTimedOut         Outcome = "timed_out"
	OutcomeSubmissionFailed Outcome = "submission_failed"
	OutcomeCanceled         Outcome = "canceled"
	OutcomeError            Outcome = "error"
)

// StatusClient is the subset of the rendering-service client the workflow needs.
type StatusClient interface {
	SubmitRender(ctx context.Context, edit shotstack.Edit) (shotstack.RawResponse, error)
	GetRender(ctx context.Context, id string) (shotstack.RawResponse, error)
}

// Config bounds the poll loop and names the notification topic.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
	Topic       string
}

// Workflow drives one render from submission to outcome. It holds no per-job state; every
// status it reports comes from a fresh upstream read, so Poll may be re-invoked for any id.
type Workflow struct {
	client    StatusClient
	publisher promo.Publisher
	renderLog promo.RenderLog
	clock     promo.Clock
	cfg       Config
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// New constructs a Workflow. publisher and renderLog may be nil.
func New(
	client StatusClient,
	publisher promo.Publisher,
	renderLog promo.RenderLog,
	clock promo.Clock,
	cfg Config,
	logger *zap.Logger,
) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		client:    client,
		publisher: publisher,
		renderLog: renderLog,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// WithPolling returns a copy of w that polls with different constants.
func (w *Workflow) WithPolling(interval time.Duration, maxAttempts int) *Workflow {
	clone := *w
	clone.cfg.Interval = interval
	clone.cfg.MaxAttempts = maxAttempts
	return &clone
}

// Submit posts edit and returns the job id assigned upstream.
func (w *Workflow) Submit(ctx context.Context, edit shotstack.Edit) (string, error) {
	resp, err := w.client.SubmitRender(ctx, edit)
	if err != nil {
		metrics.ObserveSubmission("error")
		return "", err
	}
	if !resp.OK() {
		metrics.ObserveSubmission("rejected")
		w.logger.Warn("render submission rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", resp.Body))
		return "", &promo.UpstreamError{Op: "submit render", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var env shotstack.RenderEnvelope
	if err := resp.DecodeInto(&env); err != nil || env.Response.ID == "" {
		metrics.ObserveSubmission("error")
		return "", &promo.InconsistentUpstreamError{Reason: "no id returned"}
	}

	metrics.ObserveSubmission("ok")
	w.logger.Info("render submitted",
		zap.String("job_id", env.Response.ID),
		zap.Float64("duration_seconds", edit.Duration()))
	w.record(ctx, promo.RenderEvent{
		JobID:  env.Response.ID,
		Event:  "submitted",
		Status: promo.StatusQueued,
		Title:  edit.Title(),
	})
	return env.Response.ID, nil
}

// Status performs a single status read and normalizes it.
func (w *Workflow) Status(ctx context.Context, id string) (promo.RenderJob, error) {
	resp, err := w.client.GetRender(ctx, id)
	if err != nil {
		return promo.RenderJob{}, err
	}
	if !resp.OK() {
		return promo.RenderJob{}, &promo.UpstreamError{Op: "get render", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var env shotstack.RenderEnvelope
	if err := resp.DecodeInto(&env); err != nil {
		return promo.RenderJob{}, &promo.InconsistentUpstreamError{JobID: id, Reason: "unreadable status body"}
	}
	job := promo.RenderJob{
		ID:     id,
		Status: promo.RenderStatus(env.Response.Status),
		URL:    env.Response.URL,
		Error:  env.Response.Error,
	}
	switch job.Status {
	case promo.StatusDone:
		if job.URL == "" {
			return job, &promo.InconsistentUpstreamError{JobID: id, Reason: "status done without a result url"}
		}
	case promo.StatusRendering:
		job.Hint = RenderingHint
	}
	return job, nil
}

// Poll reads the job status until it is terminal, MaxAttempts reads have been made, or ctx ends.
// The first read is immediate. observe, when set, sees every successful read in order.
func (w *Workflow) Poll(
	ctx context.Context,
	id string,
	observe func(promo.RenderJob),
) (promo.RenderJob, Outcome, error) {
	var last promo.RenderJob
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := w.sleep(ctx, w.cfg.Interval); err != nil {
				return w.finish(ctx, id, last, OutcomeCanceled, attempt-1, fmt.Errorf("poll %s: %w", id, err))
			}
		}

		job, err := w.Status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return w.finish(ctx, id, last, OutcomeCanceled, attempt, fmt.Errorf("poll %s: %w", id, ctx.Err()))
			}
			return w.finish(ctx, id, last, OutcomeError, attempt, err)
		}
		job.Attempt = attempt
		last = job
		if observe != nil {
			observe(job)
		}

		switch {
		case job.Status == promo.StatusDone:
			return w.finish(ctx, id, job, OutcomeDone, attempt, nil)
		case job.Status == promo.StatusFailed:
			return w.finish(ctx, id, job, OutcomeFailed, attempt, nil)
		case !job.Status.Known():
			w.logger.Warn("unknown render status, continuing to poll",
				zap.String("job_id", id),
				zap.String("status", string(job.Status)))
		}
	}
	return w.finish(ctx, id, last, OutcomeTimedOut, w.cfg.MaxAttempts,
		&promo.TimeoutError{JobID: id, Attempts: w.cfg.MaxAttempts})
}

// Run submits edit and polls the resulting job.
func (w *Workflow) Run(
	ctx context.Context,
	edit shotstack.Edit,
	observe func(promo.RenderJob),
) (promo.RenderJob, Outcome, error) {
	id, err := w.Submit(ctx, edit)
	if err != nil {
		outcome := OutcomeSubmissionFailed
		if ctx.Err() != nil {
			outcome = OutcomeCanceled
		}
		return w.finish(ctx, "", promo.RenderJob{}, outcome, 0, err)
	}
	return w.Poll(ctx, id, observe)
}

// finish applies the outcome side effects. Their failures are logged and never change the result.
func (w *Workflow) finish(
	ctx context.Context,
	id string,
	job promo.RenderJob,
	outcome Outcome,
	attempts int,
	err error,
) (promo.RenderJob, Outcome, error) {
	metrics.ObserveRenderOutcome(string(outcome), attempts)

	fields := []zap.Field{
		zap.String("job_id", id),
		zap.String("outcome", string(outcome)),
		zap.Int("attempts", attempts),
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Warn("render poll ended", append(fields, zap.Error(err))...)
	} else {
		w.logger.Info("render poll ended", fields...)
	}

	errText := job.Error
	if err != nil {
		errText = err.Error()
	}
	// A rejected submission has no job to audit.
	if id != "" {
		w.record(ctx, promo.RenderEvent{
			JobID:  id,
			Event:  string(outcome),
			Status: job.Status,
			URL:    job.URL,
			Error:  errText,
		})
	}
	w.notify(ctx, promo.RenderFinished{
		JobID:   id,
		Outcome: string(outcome),
		Status:  job.Status,
		URL:     job.URL,
		Error:   errText,
	})
	return job, outcome, err
}

func (w *Workflow) record(ctx context.Context, event promo.RenderEvent) {
	if w.renderLog == nil {
		return
	}
	event.OccurredAt = w.now()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := w.renderLog.Record(sctx, event); err != nil {
		w.logger.Warn("record render event failed", zap.String("job_id", event.JobID), zap.Error(err))
	}
}

func (w *Workflow) notify(ctx context.Context, finished promo.RenderFinished) {
	if w.publisher == nil || w.cfg.Topic == "" {
		return
	}
	finished.FinishedAt = w.now()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if _, err := w.publisher.Publish(sctx, w.cfg.Topic, finished); err != nil {
		w.logger.Warn("publish render finished failed", zap.String("job_id", finished.JobID), zap.Error(err))
	}
}

func (w *Workflow) now() time.Time {
	if w.clock == nil {
		return time.Now().UTC()
	}
	return w.clock.Now()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
