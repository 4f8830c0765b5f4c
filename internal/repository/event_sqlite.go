package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wiretrace/wiretrace/internal/model"
)

// ErrNotFound is returned when a point lookup matches no row.
var ErrNotFound = errors.New("event not found")

type SQLiteEventRepo struct {
	db *sqlx.DB
}

func NewSQLiteEventRepo(db *sqlx.DB) (*SQLiteEventRepo, error) {
	repo := &SQLiteEventRepo{db: db}
	if err := repo.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return repo, nil
}

// Insert appends one canonical event and returns the assigned id.
// AUTOINCREMENT keeps assignment monotonic for the lifetime of the
// file: ids are never reissued, even after ClearAll.
func (r *SQLiteEventRepo) Insert(ctx context.Context, event *model.Event) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO events (
			ts, ts_ms, phase, method, url, host, path, status, duration_ms,
			service, runtime, trace_id, request_id,
			req_headers_json, res_headers_json,
			request_body_json, response_body_json,
			error_message, truncated
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, event.TS, event.TSMs, event.Phase, event.Method, event.URL,
		event.Host, event.Path, event.Status, event.DurationMs,
		event.Service, event.Runtime, event.TraceID, event.RequestID,
		event.ReqHeadersJSON, event.ResHeadersJSON,
		event.RequestBodyJSON, event.ResponseBodyJSON,
		event.ErrorMessage, event.Truncated)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// List returns one page of events matching filter, newest first by
// ts_ms (id breaks ties deterministically), plus the total match count.
func (r *SQLiteEventRepo) List(ctx context.Context, filter model.EventFilter, page, limit int) ([]*model.Event, int, error) {
	where, args := buildFilter(filter, time.Now())

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM events"+where, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	query := "SELECT * FROM events" + where + " ORDER BY ts_ms DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	events := make([]*model.Event, 0, limit)
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (r *SQLiteEventRepo) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	var event model.Event
	err := r.db.GetContext(ctx, &event, "SELECT * FROM events WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// DistinctHosts lists the host values present in the table, ascending,
// excluding rows whose URL never parsed to a host.
func (r *SQLiteEventRepo) DistinctHosts(ctx context.Context) ([]string, error) {
	hosts := []string{}
	err := r.db.SelectContext(ctx, &hosts,
		"SELECT DISTINCT host FROM events WHERE host IS NOT NULL ORDER BY host ASC")
	if err != nil {
		return nil, err
	}
	return hosts, nil
}

// ClearAll deletes every row. The sqlite_sequence entry is left alone
// so future ids never collide with ones already handed out.
func (r *SQLiteEventRepo) ClearAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM events")
	return err
}

// buildFilter translates an EventFilter into a WHERE clause. A
// recognized statusCategory takes precedence over an exact status
// filter; unrecognized enum values apply no constraint at all.
func buildFilter(f model.EventFilter, now time.Time) (string, []interface{}) {
	clauses := []string{}
	args := []interface{}{}

	if window := timeWindow(f.TimeRange); window > 0 {
		clauses = append(clauses, "ts_ms >= ?")
		args = append(args, now.Add(-window).UnixMilli())
	}
	if f.Method != "" {
		clauses = append(clauses, "method = ?")
		args = append(args, f.Method)
	}
	if f.Phase != "" {
		clauses = append(clauses, "phase = ?")
		args = append(args, f.Phase)
	}
	if f.Host != "" {
		clauses = append(clauses, "host = ?")
		args = append(args, f.Host)
	}

	if f.StatusCategory != "" {
		switch f.StatusCategory {
		case "2xx":
			clauses = append(clauses, "status >= 200 AND status < 300")
		case "3xx":
			clauses = append(clauses, "status >= 300 AND status < 400")
		case "4xx":
			clauses = append(clauses, "status >= 400 AND status < 500")
		case "5xx":
			clauses = append(clauses, "status >= 500 AND status < 600")
		case "errors":
			clauses = append(clauses, "(error_message IS NOT NULL OR status >= 400)")
		}
	} else if f.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, *f.Status)
	}

	if f.Search != "" {
		clauses = append(clauses, "(url LIKE ? OR error_message LIKE ?)")
		term := "%" + f.Search + "%"
		args = append(args, term, term)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func timeWindow(timeRange string) time.Duration {
	switch timeRange {
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "24h":
		return 24 * time.Hour
	}
	return 0
}

func (r *SQLiteEventRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			ts_ms INTEGER NOT NULL,
			phase TEXT NOT NULL,
			method TEXT,
			url TEXT NOT NULL,
			host TEXT,
			path TEXT,
			status INTEGER,
			duration_ms INTEGER,
			service TEXT,
			runtime TEXT,
			trace_id TEXT,
			request_id TEXT,
			req_headers_json TEXT,
			res_headers_json TEXT,
			request_body_json TEXT,
			response_body_json TEXT,
			error_message TEXT,
			truncated INTEGER DEFAULT 0
		)
	`)
	if err != nil {
		return err
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_events_ts_ms ON events(ts_ms)",
		"CREATE INDEX IF NOT EXISTS idx_events_host ON events(host)",
		"CREATE INDEX IF NOT EXISTS idx_events_status ON events(status)",
		"CREATE INDEX IF NOT EXISTS idx_events_phase ON events(phase)",
		"CREATE INDEX IF NOT EXISTS idx_events_method ON events(method)",
		"CREATE INDEX IF NOT EXISTS idx_events_trace_id ON events(trace_id)",
	}
	for _, idx := range indexes {
		if _, err := r.db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
