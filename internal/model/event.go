package model

import (
	json "github.com/goccy/go-json"
)

// Lifecycle phase of a recorded HTTP exchange.
const (
	PhaseRequest  = "request"
	PhaseResponse = "response"
	PhaseError    = "error"
)

// IncomingEvent is the raw payload a producer posts to /events.
// Everything except phase and url is optional; the normalizer fills in
// derived fields and explicit nulls.
type IncomingEvent struct {
	TS           string            `json:"ts"`
	Phase        string            `json:"phase"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	Status       *int              `json:"status"`
	DurationMs   *int64            `json:"durationMs"`
	ReqHeaders   map[string]string `json:"reqHeaders"`
	ResHeaders   map[string]string `json:"resHeaders"`
	RequestBody  any               `json:"requestBody"`
	ResponseBody any               `json:"responseBody"`
	ErrorMessage string            `json:"errorMessage"`
	Service      string            `json:"service"`
	Runtime      string            `json:"runtime"`
	TraceID      string            `json:"traceId"`
	RequestID    string            `json:"requestId"`
}

// Event is the canonical, persisted representation of one occurrence.
// Header and body columns hold serialized JSON; Hydrate deserializes
// them for transport.
type Event struct {
	ID         int64   `db:"id" json:"id"`
	TS         string  `db:"ts" json:"ts"`
	TSMs       int64   `db:"ts_ms" json:"ts_ms"`
	Phase      string  `db:"phase" json:"phase"`
	Method     *string `db:"method" json:"method"`
	URL        string  `db:"url" json:"url"`
	Host       *string `db:"host" json:"host"`
	Path       *string `db:"path" json:"path"`
	Status     *int    `db:"status" json:"status"`
	DurationMs *int64  `db:"duration_ms" json:"duration_ms"`
	Service    *string `db:"service" json:"service"`
	Runtime    *string `db:"runtime" json:"runtime"`
	TraceID    *string `db:"trace_id" json:"trace_id"`
	RequestID  *string `db:"request_id" json:"request_id"`

	ReqHeadersJSON   string `db:"req_headers_json" json:"-"`
	ResHeadersJSON   string `db:"res_headers_json" json:"-"`
	RequestBodyJSON  string `db:"request_body_json" json:"-"`
	ResponseBodyJSON string `db:"response_body_json" json:"-"`

	ErrorMessage *string `db:"error_message" json:"error_message"`
	Truncated    bool    `db:"truncated" json:"truncated"`
}

// WireEvent is the hydrated form sent to observers and query clients:
// the stored row with headers and bodies back as structured JSON.
type WireEvent struct {
	Event
	ReqHeaders   map[string]string `json:"req_headers"`
	ResHeaders   map[string]string `json:"res_headers"`
	RequestBody  any               `json:"request_body"`
	ResponseBody any               `json:"response_body"`
}

// Hydrate deserializes the stored JSON columns into structured fields.
func (e *Event) Hydrate() *WireEvent {
	w := &WireEvent{Event: *e}
	if e.ReqHeadersJSON != "" {
		_ = json.Unmarshal([]byte(e.ReqHeadersJSON), &w.ReqHeaders)
	}
	if e.ResHeadersJSON != "" {
		_ = json.Unmarshal([]byte(e.ResHeadersJSON), &w.ResHeaders)
	}
	w.RequestBody = decodeBody(e.RequestBodyJSON)
	w.ResponseBody = decodeBody(e.ResponseBodyJSON)
	return w
}

// decodeBody parses a stored body column. Truncated payloads are not
// valid JSON anymore; those are exposed as the raw text instead of
// failing the whole record.
func decodeBody(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
