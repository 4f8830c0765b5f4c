package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiretrace/wiretrace/internal/model"
	"github.com/wiretrace/wiretrace/internal/pkg/apperrors"
)

func seedEvents(t *testing.T, svc *IngestService, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		status := 200
		if i%3 == 0 {
			status = 404
		}
		_, err := svc.Ingest(context.Background(), &model.IncomingEvent{
			TS:     time.Now().Add(time.Duration(i) * time.Millisecond).UTC().Format(time.RFC3339Nano),
			Phase:  model.PhaseResponse,
			Method: "GET",
			URL:    fmt.Sprintf("https://host%d.example.com/item/%d", i%2, i),
			Status: &status,
		})
		require.NoError(t, err)
	}
}

func TestListPagination(t *testing.T) {
	repo := newTestRepo(t)
	ingest := NewIngestService(repo, nil)
	query := NewQueryService(repo)
	seedEvents(t, ingest, 25)

	result, err := query.List(context.Background(), model.ListQuery{Page: 2, Limit: 10})
	require.NoError(t, err)

	assert.Len(t, result.Events, 10)
	assert.Equal(t, 2, result.Pagination.Page)
	assert.Equal(t, 10, result.Pagination.Limit)
	assert.Equal(t, 25, result.Pagination.Total)
	assert.Equal(t, 3, result.Pagination.TotalPages)

	last, err := query.List(context.Background(), model.ListQuery{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, last.Events, 5)
}

func TestListStatusStringFilter(t *testing.T) {
	repo := newTestRepo(t)
	ingest := NewIngestService(repo, nil)
	query := NewQueryService(repo)
	seedEvents(t, ingest, 12)

	result, err := query.List(context.Background(), model.ListQuery{Page: 1, Limit: 100, Status: "404"})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Pagination.Total)

	// A non-numeric status applies no constraint.
	result, err = query.List(context.Background(), model.ListQuery{Page: 1, Limit: 100, Status: "teapot"})
	require.NoError(t, err)
	assert.Equal(t, 12, result.Pagination.Total)
}

func TestListHydratesRecords(t *testing.T) {
	repo := newTestRepo(t)
	ingest := NewIngestService(repo, nil)
	query := NewQueryService(repo)

	_, err := ingest.Ingest(context.Background(), &model.IncomingEvent{
		Phase:       model.PhaseResponse,
		URL:         "https://api.example.com/",
		ReqHeaders:  map[string]string{"Cookie": "a=1", "Accept": "*/*"},
		RequestBody: map[string]any{"q": "search"},
	})
	require.NoError(t, err)

	result, err := query.List(context.Background(), model.ListQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)

	event := result.Events[0]
	assert.Equal(t, "[redacted]", event.ReqHeaders["Cookie"])
	assert.Equal(t, "*/*", event.ReqHeaders["Accept"])
	assert.Equal(t, map[string]any{"q": "search"}, event.RequestBody)
	assert.Nil(t, event.ResponseBody)
}

func TestGetNotFound(t *testing.T) {
	query := NewQueryService(newTestRepo(t))

	_, err := query.Get(context.Background(), 99)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrNotFound, appErr.Type)
	assert.Equal(t, 404, appErr.HTTPStatus)
}

func TestHostsSortedAndRefreshedAfterClear(t *testing.T) {
	repo := newTestRepo(t)
	ingest := NewIngestService(repo, nil)
	query := NewQueryService(repo)
	seedEvents(t, ingest, 4)

	hosts, err := query.Hosts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"host0.example.com", "host1.example.com"}, hosts)

	require.NoError(t, query.Clear(context.Background()))

	// Clear flushes the cache, so the next read sees the empty table.
	hosts, err = query.Hosts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hosts)

	result, err := query.List(context.Background(), model.ListQuery{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, result.Events)
	assert.Equal(t, 0, result.Pagination.Total)
}
