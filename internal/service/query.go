package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/wiretrace/wiretrace/internal/model"
	"github.com/wiretrace/wiretrace/internal/pkg/apperrors"
	"github.com/wiretrace/wiretrace/internal/repository"
)

const hostsCacheKey = "hosts"

type QueryService struct {
	repo       EventRepo
	hostsCache *gocache.Cache
}

func NewQueryService(repo EventRepo) *QueryService {
	return &QueryService{
		repo:       repo,
		hostsCache: gocache.New(5*time.Second, time.Minute),
	}
}

// List returns one hydrated page plus pagination metadata. Page and
// limit are taken as given; the transport layer clamps them.
func (s *QueryService) List(ctx context.Context, q model.ListQuery) (*model.ListResult, error) {
	filter := model.EventFilter{
		Method:         q.Method,
		Phase:          q.Phase,
		Host:           q.Host,
		Search:         q.Search,
		StatusCategory: q.StatusCategory,
		TimeRange:      q.TimeRange,
	}
	if q.Status != "" {
		if status, err := strconv.Atoi(q.Status); err == nil {
			filter.Status = &status
		}
	}

	events, total, err := s.repo.List(ctx, filter, q.Page, q.Limit)
	if err != nil {
		return nil, apperrors.NewStorage("failed to query events", err)
	}

	hydrated := make([]*model.WireEvent, 0, len(events))
	for _, event := range events {
		hydrated = append(hydrated, event.Hydrate())
	}

	return &model.ListResult{
		Events: hydrated,
		Pagination: model.Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: (total + q.Limit - 1) / q.Limit,
		},
	}, nil
}

func (s *QueryService) Get(ctx context.Context, id int64) (*model.WireEvent, error) {
	event, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("Event not found")
	}
	if err != nil {
		return nil, apperrors.NewStorage("failed to load event", err)
	}
	return event.Hydrate(), nil
}

// Hosts returns the distinct hosts seen so far, sorted ascending. The
// result is cached briefly since the viewer polls it for its filter
// dropdown.
func (s *QueryService) Hosts(ctx context.Context) ([]string, error) {
	if cached, ok := s.hostsCache.Get(hostsCacheKey); ok {
		return cached.([]string), nil
	}
	hosts, err := s.repo.DistinctHosts(ctx)
	if err != nil {
		return nil, apperrors.NewStorage("failed to list hosts", err)
	}
	s.hostsCache.SetDefault(hostsCacheKey, hosts)
	return hosts, nil
}

// Clear deletes every recorded event. Confirmation is the viewer's
// concern; here it is a plain destructive operation.
func (s *QueryService) Clear(ctx context.Context) error {
	if err := s.repo.ClearAll(ctx); err != nil {
		return apperrors.NewStorage("failed to clear events", err)
	}
	s.hostsCache.Flush()
	return nil
}
