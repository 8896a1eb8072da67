package history

import (
	"context"
	"fmt"

	"github.com/2beens/fitcoach/internal/formanalysis"
	"github.com/2beens/fitcoach/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=history

type recordsRepo interface {
	Add(ctx context.Context, record SessionRecord) (int, error)
	List(ctx context.Context, params ListParams) ([]*SessionRecord, error)
	Count(ctx context.Context, userID string) (int, error)
}

type Service struct {
	repo recordsRepo
}

func NewService(repo recordsRepo) *Service {
	return &Service{
		repo: repo,
	}
}

// Save stores the summary of a finished session run. Runs without a user
// are not stored.
func (s *Service) Save(ctx context.Context, summary formanalysis.Summary) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.history.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if summary.UserID == "" {
		log.Debugf("session [%s] has no user, not stored", summary.ID)
		return 0, nil
	}

	id, err := s.repo.Add(ctx, NewSessionRecord(summary))
	if err != nil {
		return 0, fmt.Errorf("add session record: %w", err)
	}
	return id, nil
}

func (s *Service) List(ctx context.Context, params ListParams) (_ []*SessionRecord, _ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.history.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	records, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("list session records: %w", err)
	}
	total, err := s.repo.Count(ctx, params.UserID)
	if err != nil {
		return nil, 0, fmt.Errorf("count session records: %w", err)
	}
	return records, total, nil
}
