package render

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/promoforge/internal/promo"
	"github.com/JakeFAU/promoforge/internal/publisher/memory"
	"github.com/JakeFAU/promoforge/internal/shotstack"
)

type reply struct {
	status int
	body   string
	err    error
}

func statusReply(status, url string) reply {
	body := `{"success":true,"message":"OK","response":{"id":"job-1","status":"` + status + `"`
	if url != "" {
		body += `,"url":"` + url + `"`
	}
	return reply{status: http.StatusOK, body: body + `}}`}
}

type fakeClient struct {
	mu          sync.Mutex
	submit      reply
	gets        []reply
	submitCalls int
	getCalls    int
}

func (f *fakeClient) SubmitRender(context.Context, shotstack.Edit) (shotstack.RawResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submit.err != nil {
		return shotstack.RawResponse{}, f.submit.err
	}
	return shotstack.RawResponse{StatusCode: f.submit.status, Body: []byte(f.submit.body)}, nil
}

func (f *fakeClient) GetRender(context.Context, string) (shotstack.RawResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.getCalls
	if idx >= len(f.gets) {
		idx = len(f.gets) - 1
	}
	f.getCalls++
	r := f.gets[idx]
	if r.err != nil {
		return shotstack.RawResponse{}, r.err
	}
	return shotstack.RawResponse{StatusCode: r.status, Body: []byte(r.body)}, nil
}

type fakeLog struct {
	mu     sync.Mutex
	events []promo.RenderEvent
	err    error
}

func (l *fakeLog) Record(_ context.Context, event promo.RenderEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return l.err
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type harness struct {
	workflow *Workflow
	client   *fakeClient
	pub      *memory.Publisher
	log      *fakeLog
	sleeps   []time.Duration
}

func newHarness(client *fakeClient, maxAttempts int) *harness {
	h := &harness{client: client, pub: memory.New(), log: &fakeLog{}}
	h.workflow = New(client, h.pub, h.log, fixedClock{t: time.Unix(1700000000, 0).UTC()}, Config{
		Interval:    time.Second,
		MaxAttempts: maxAttempts,
		Topic:       "render-finished",
	}, zap.NewNop())
	h.workflow.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return h
}

func submitOK() reply {
	return reply{status: http.StatusCreated, body: `{"success":true,"message":"Created","response":{"id":"job-1"}}`}
}

func TestRunReachesDoneAfterExactlyFourPolls(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		submit: submitOK(),
		gets: []reply{
			statusReply("queued", ""),
			statusReply("rendering", ""),
			statusReply("rendering", ""),
			statusReply("done", "https://cdn.example.com/out.mp4"),
			statusReply("queued", ""),
		},
	}
	h := newHarness(client, 30)

	var seen []promo.RenderJob
	job, outcome, err := h.workflow.Run(context.Background(), shotstack.Edit{}, func(j promo.RenderJob) {
		seen = append(seen, j)
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, "https://cdn.example.com/out.mp4", job.URL)
	assert.Equal(t, 4, client.getCalls)
	assert.Equal(t, 1, client.submitCalls)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, h.sleeps)

	require.Len(t, seen, 4)
	assert.Empty(t, seen[0].Hint)
	assert.Equal(t, RenderingHint, seen[1].Hint)
	assert.Equal(t, 4, seen[3].Attempt)
}

func TestPollTimesOutInsteadOfFailing(t *testing.T) {
	t.Parallel()

	client := &fakeClient{gets: []reply{statusReply("rendering", "")}}
	h := newHarness(client, 5)

	job, outcome, err := h.workflow.Poll(context.Background(), "job-1", nil)
	assert.Equal(t, OutcomeTimedOut, outcome)
	var timeout *promo.TimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, 5, timeout.Attempts)
	assert.Contains(t, err.Error(), "may still complete")
	assert.Equal(t, promo.StatusRendering, job.Status)
	assert.Equal(t, 5, client.getCalls)
	assert.Len(t, h.sleeps, 4)
}

func TestPollFailedCarriesUpstreamError(t *testing.T) {
	t.Parallel()

	client := &fakeClient{gets: []reply{{
		status: http.StatusOK,
		body:   `{"success":true,"response":{"id":"job-1","status":"failed","error":"Asset could not be downloaded"}}`,
	}}}
	h := newHarness(client, 10)

	job, outcome, err := h.workflow.Poll(context.Background(), "job-1", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, "Asset could not be downloaded", job.Error)
	assert.Equal(t, 1, client.getCalls)
}

func TestPollDoneWithoutURLIsInconsistent(t *testing.T) {
	t.Parallel()

	client := &fakeClient{gets: []reply{statusReply("done", "")}}
	h := newHarness(client, 10)

	_, outcome, err := h.workflow.Poll(context.Background(), "job-1", nil)
	assert.Equal(t, OutcomeError, outcome)
	var inconsistent *promo.InconsistentUpstreamError
	require.True(t, errors.As(err, &inconsistent))
	assert.Equal(t, 1, client.getCalls)
}

func TestPollNon2xxIsReportedImmediately(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusUnauthorized} {
		client := &fakeClient{gets: []reply{{status: code, body: `{"message":"nope"}`}}}
		h := newHarness(client, 10)

		_, outcome, err := h.workflow.Poll(context.Background(), "job-1", nil)
		assert.Equal(t, OutcomeError, outcome)
		var upstream *promo.UpstreamError
		require.True(t, errors.As(err, &upstream))
		assert.Equal(t, code, upstream.StatusCode)
		assert.Equal(t, code == http.StatusNotFound, upstream.NotFound())
		assert.Equal(t, `{"message":"nope"}`, upstream.Body)
		assert.Equal(t, 1, client.getCalls, "non-2xx must not be retried")
		assert.Empty(t, h.sleeps)
	}
}

func TestPollUnknownStatusKeepsPolling(t *testing.T) {
	t.Parallel()

	client := &fakeClient{gets: []reply{
		statusReply("preprocessing", ""),
		statusReply("done", "https://cdn.example.com/out.mp4"),
	}}
	h := newHarness(client, 10)

	_, outcome, err := h.workflow.Poll(context.Background(), "job-1", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, 2, client.getCalls)
}

func TestSubmitRejectedNeverPolls(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		submit: reply{status: http.StatusBadRequest, body: `{"message":"Bad Request","response":"timeline.tracks is required"}`},
		gets:   []reply{statusReply("done", "https://x")},
	}
	h := newHarness(client, 10)

	before := outcomeCount(t, OutcomeSubmissionFailed)
	_, outcome, err := h.workflow.Run(context.Background(), shotstack.Edit{}, nil)
	assert.Equal(t, OutcomeSubmissionFailed, outcome)
	var upstream *promo.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, http.StatusBadRequest, upstream.StatusCode)
	assert.Contains(t, upstream.Body, "timeline.tracks is required")
	assert.Equal(t, 0, client.getCalls)

	assert.GreaterOrEqual(t, outcomeCount(t, OutcomeSubmissionFailed), before+1)
	finished := h.pub.Finished()
	require.Len(t, finished, 1)
	assert.Equal(t, "submission_failed", finished[0].Outcome)
	assert.Empty(t, finished[0].JobID)
	assert.Contains(t, finished[0].Error, "timeline.tracks is required")
	assert.Empty(t, h.log.events)
}

// outcomeCount reads promoforge_render_outcomes_total for one outcome from the default registry.
func outcomeCount(t *testing.T, outcome Outcome) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "promoforge_render_outcomes_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == string(outcome) {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestSubmitWithoutIDNeverPolls(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		submit: reply{status: http.StatusCreated, body: `{"success":true,"response":{}}`},
		gets:   []reply{statusReply("done", "https://x")},
	}
	h := newHarness(client, 10)

	_, outcome, err := h.workflow.Run(context.Background(), shotstack.Edit{}, nil)
	assert.Equal(t, OutcomeSubmissionFailed, outcome)
	var inconsistent *promo.InconsistentUpstreamError
	require.True(t, errors.As(err, &inconsistent))
	assert.Contains(t, err.Error(), "no id returned")
	assert.Equal(t, 0, client.getCalls)
}

func TestSubmitTransportFailure(t *testing.T) {
	t.Parallel()

	client := &fakeClient{submit: reply{err: &promo.TransportError{Op: "POST /render", Err: errors.New("dial tcp")}}}
	h := newHarness(client, 10)

	_, outcome, err := h.workflow.Run(context.Background(), shotstack.Edit{}, nil)
	assert.Equal(t, OutcomeSubmissionFailed, outcome)
	var transport *promo.TransportError
	require.True(t, errors.As(err, &transport))
}

func TestPollCanceledDuringSleep(t *testing.T) {
	t.Parallel()

	client := &fakeClient{gets: []reply{statusReply("queued", "")}}
	h := newHarness(client, 10)
	ctx, cancel := context.WithCancel(context.Background())
	h.workflow.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	job, outcome, err := h.workflow.Poll(ctx, "job-1", nil)
	assert.Equal(t, OutcomeCanceled, outcome)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, promo.StatusQueued, job.Status)
	assert.Equal(t, 1, client.getCalls)
}

func TestOutcomeSideEffects(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		submit: submitOK(),
		gets:   []reply{statusReply("done", "https://cdn.example.com/out.mp4")},
	}
	h := newHarness(client, 10)

	edit, err := shotstack.BuildEdit(promo.VideoSpec{
		Title:           "Acme",
		Description:     "d",
		DurationSeconds: 10,
		Images:          []string{"https://cdn.example.com/a.jpg"},
	})
	require.NoError(t, err)
	_, _, err = h.workflow.Run(context.Background(), edit, nil)
	require.NoError(t, err)

	finished := h.pub.Finished()
	require.Len(t, finished, 1)
	assert.Equal(t, "job-1", finished[0].JobID)
	assert.Equal(t, "done", finished[0].Outcome)
	assert.Equal(t, "https://cdn.example.com/out.mp4", finished[0].URL)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), finished[0].FinishedAt)

	require.Len(t, h.log.events, 2)
	assert.Equal(t, "submitted", h.log.events[0].Event)
	assert.Equal(t, "Acme", h.log.events[0].Title)
	assert.Equal(t, "done", h.log.events[1].Event)
}

func TestSideEffectFailuresDoNotChangeOutcome(t *testing.T) {
	t.Parallel()

	client := &fakeClient{gets: []reply{statusReply("done", "https://cdn.example.com/out.mp4")}}
	h := newHarness(client, 10)
	h.pub.FailWith(errors.New("broker down"))
	h.log.err = errors.New("db down")

	job, outcome, err := h.workflow.Poll(context.Background(), "job-1", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDone, outcome)
	assert.Equal(t, "https://cdn.example.com/out.mp4", job.URL)
}

func TestWithPollingCopiesWorkflow(t *testing.T) {
	t.Parallel()

	h := newHarness(&fakeClient{}, 30)
	full := h.workflow.WithPolling(5*time.Second, 60)
	assert.Equal(t, 60, full.cfg.MaxAttempts)
	assert.Equal(t, 5*time.Second, full.cfg.Interval)
	assert.Equal(t, 30, h.workflow.cfg.MaxAttempts)
}

func TestSleepContext(t *testing.T) {
	t.Parallel()

	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepContext(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
}
