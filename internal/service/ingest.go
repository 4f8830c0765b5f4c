package service

import (
	"context"
	"time"

	"github.com/wiretrace/wiretrace/internal/model"
	"github.com/wiretrace/wiretrace/internal/normalize"
	"github.com/wiretrace/wiretrace/internal/pkg/apperrors"
	"github.com/wiretrace/wiretrace/internal/pkg/metrics"
)

// EventRepo is the persistence contract the services depend on.
type EventRepo interface {
	Insert(ctx context.Context, event *model.Event) (int64, error)
	List(ctx context.Context, filter model.EventFilter, page, limit int) ([]*model.Event, int, error)
	GetByID(ctx context.Context, id int64) (*model.Event, error)
	DistinctHosts(ctx context.Context) ([]string, error)
	ClearAll(ctx context.Context) error
}

// Publisher relays a hydrated event to live observers.
type Publisher interface {
	Publish(event *model.WireEvent)
}

type IngestService struct {
	repo      EventRepo
	publisher Publisher
	now       func() time.Time
}

func NewIngestService(repo EventRepo, publisher Publisher) *IngestService {
	return &IngestService{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
	}
}

// Ingest normalizes a raw producer event, persists it and broadcasts
// the hydrated record. The broadcast happens only after the insert
// succeeded and is fire-and-forget: a stream problem never fails the
// producer once the event is durable.
func (s *IngestService) Ingest(ctx context.Context, raw *model.IncomingEvent) (int64, error) {
	event, err := normalize.Normalize(raw, s.now())
	if err != nil {
		metrics.IngestFailures.WithLabelValues("validation").Inc()
		return 0, err
	}

	id, err := s.repo.Insert(ctx, event)
	if err != nil {
		metrics.IngestFailures.WithLabelValues("storage").Inc()
		return 0, apperrors.NewStorage("failed to persist event", err)
	}
	event.ID = id
	metrics.EventsIngested.WithLabelValues(event.Phase).Inc()

	if s.publisher != nil {
		s.publisher.Publish(event.Hydrate())
	}
	return id, nil
}
