package history

import (
	"errors"
	"time"

	"github.com/2beens/fitcoach/internal/formanalysis"
)

var ErrDuplicateRecord = errors.New("session record already stored")

// SessionRecord (DB level type) is one finished run of an analysis session.
// A session that is restarted produces one record per run.
type SessionRecord struct {
	ID               int       `json:"id"`
	SessionID        string    `json:"sessionId"`
	UserID           string    `json:"userId"`
	ExerciseID       string    `json:"exerciseId"`
	StartedAt        time.Time `json:"startedAt"`
	StoppedAt        time.Time `json:"stoppedAt"`
	DurationMs       int64     `json:"durationMs"`
	Ticks            int       `json:"ticks"`
	CaptureMisses    int       `json:"captureMisses"`
	Activations      int       `json:"activations"`
	FeedbackRevealed int       `json:"feedbackRevealed"`
	MeanMotion       float64   `json:"meanMotion"`
	MotionStdDev     float64   `json:"motionStdDev"`
	EndReason        string    `json:"endReason"`
}

func NewSessionRecord(s formanalysis.Summary) SessionRecord {
	return SessionRecord{
		SessionID:        s.ID,
		UserID:           s.UserID,
		ExerciseID:       s.ExerciseID,
		StartedAt:        s.StartedAt.UTC(),
		StoppedAt:        s.StoppedAt.UTC(),
		DurationMs:       s.Duration.Milliseconds(),
		Ticks:            s.Ticks,
		CaptureMisses:    s.CaptureMisses,
		Activations:      s.Activations,
		FeedbackRevealed: s.FeedbackRevealed,
		MeanMotion:       s.MeanMotion,
		MotionStdDev:     s.MotionStdDev,
		EndReason:        string(s.EndReason),
	}
}

type ListParams struct {
	UserID string
	// Page starts at 1.
	Page int
	Size int
}
