package history

import (
	"context"
	"fmt"

	"github.com/2beens/fitcoach/internal/telemetry/tracing"
	"github.com/2beens/fitcoach/pkg"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, record SessionRecord) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.history.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("session-id", record.SessionID))

	var id int
	err = r.db.QueryRow(ctx, `
		INSERT INTO analysis_session (
			session_id, user_id, exercise_id, started_at, stopped_at, duration_ms,
			ticks, capture_misses, activations, feedback_revealed,
			mean_motion, motion_std_dev, end_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`,
		record.SessionID, record.UserID, record.ExerciseID,
		record.StartedAt, record.StoppedAt, record.DurationMs,
		record.Ticks, record.CaptureMisses, record.Activations, record.FeedbackRevealed,
		record.MeanMotion, record.MotionStdDev, record.EndReason,
	).Scan(&id)
	if pkg.IsUniqueViolationError(err) {
		return 0, fmt.Errorf("%w: %s at %s", ErrDuplicateRecord, record.SessionID, record.StartedAt)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repo) List(ctx context.Context, params ListParams) (_ []*SessionRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.history.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("user", params.UserID),
		attribute.Int("page", params.Page),
		attribute.Int("size", params.Size),
	)

	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, user_id, exercise_id, started_at, stopped_at, duration_ms,
			ticks, capture_misses, activations, feedback_revealed,
			mean_motion, motion_std_dev, end_reason
		FROM analysis_session
		WHERE user_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2 OFFSET $3;
	`,
		params.UserID,
		params.Size, params.Size*(params.Page-1),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*SessionRecord, 0)
	for rows.Next() {
		rec := &SessionRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &rec.UserID, &rec.ExerciseID,
			&rec.StartedAt, &rec.StoppedAt, &rec.DurationMs,
			&rec.Ticks, &rec.CaptureMisses, &rec.Activations, &rec.FeedbackRevealed,
			&rec.MeanMotion, &rec.MotionStdDev, &rec.EndReason,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (r *Repo) Count(ctx context.Context, userID string) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.history.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM analysis_session WHERE user_id = $1
	`, userID).Scan(&count); err != nil {
		return -1, err
	}
	return count, nil
}
