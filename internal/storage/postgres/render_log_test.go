package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/promoforge/internal/promo"
)

func TestRecordInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	log, err := NewRenderLogWithPool(mock, "")
	require.NoError(t, err)

	event := promo.RenderEvent{
		JobID:      "d2b6c2f1-9c3b-4f7e-8a8e-2f0a5b1c9e11",
		Event:      "done",
		Status:     promo.StatusDone,
		URL:        "https://cdn.example.com/out.mp4",
		Title:      "Acme",
		OccurredAt: time.Unix(1700000000, 0).UTC(),
	}

	mock.ExpectExec("INSERT INTO render_events").
		WithArgs(
			event.JobID,
			event.Event,
			"done",
			event.URL,
			"",
			event.Title,
			event.OccurredAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, log.Record(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPropagatesErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	log, err := NewRenderLogWithPool(mock, "audit_events")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO audit_events").
		WillReturnError(errors.New("connection reset"))

	err = log.Record(context.Background(), promo.RenderEvent{JobID: "job-1", Event: "submitted"})
	require.ErrorContains(t, err, "insert render event")
	require.NoError(t, mock.ExpectationsWereMet())

	require.Error(t, log.Record(context.Background(), promo.RenderEvent{}))
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	log, err := NewRenderLogWithPool(mock, "render_events")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS render_events").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, log.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConstructorsValidate(t *testing.T) {
	t.Parallel()

	_, err := NewRenderLogWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewRenderLogWithPool(mock, "events; DROP TABLE x")
	require.Error(t, err)

	_, err = NewRenderLog(context.Background(), Config{})
	require.Error(t, err)

	var nilLog *RenderLog
	nilLog.Close()
	require.Error(t, nilLog.Record(context.Background(), promo.RenderEvent{JobID: "x"}))
}
