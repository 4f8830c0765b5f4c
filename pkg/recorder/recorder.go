// Package recorder instruments an http.Client so every outbound call is
// reported to a running wiretrace collector. Reporting is fire-and-forget:
// the collector being down never affects the instrumented request.
package recorder

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	mask = "[redacted]"

	// maxCapturedBody bounds how much of a request/response body is
	// copied for reporting; the collector truncates further on its side.
	maxCapturedBody = 200 * 1024
)

var sensitiveHeaders = []string{"authorization", "cookie", "set-cookie", "x-api-key"}

type event struct {
	TS           string            `json:"ts"`
	Phase        string            `json:"phase"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	Status       *int              `json:"status,omitempty"`
	DurationMs   *int64            `json:"durationMs,omitempty"`
	ReqHeaders   map[string]string `json:"reqHeaders,omitempty"`
	ResHeaders   map[string]string `json:"resHeaders,omitempty"`
	RequestBody  any               `json:"requestBody,omitempty"`
	ResponseBody any               `json:"responseBody,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	Service      string            `json:"service,omitempty"`
	Runtime      string            `json:"runtime,omitempty"`
	TraceID      string            `json:"traceId,omitempty"`
	RequestID    string            `json:"requestId,omitempty"`
}

type Option func(*Transport)

func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) { t.base = base }
}

func WithService(service string) Option {
	return func(t *Transport) { t.service = service }
}

func WithRuntime(runtime string) Option {
	return func(t *Transport) { t.runtime = runtime }
}

func WithReportClient(client *http.Client) Option {
	return func(t *Transport) { t.report = client }
}

// Transport is an http.RoundTripper that reports a request event before
// dispatch, a response event after, and an error event on transport
// failure. It stamps X-Trace-Id / X-Request-Id when absent so the
// collector can correlate the phases.
type Transport struct {
	base         http.RoundTripper
	report       *http.Client
	collectorURL string
	service      string
	runtime      string
	now          func() time.Time
}

func NewTransport(collectorURL string, opts ...Option) *Transport {
	t := &Transport{
		base:         http.DefaultTransport,
		report:       &http.Client{Timeout: 2 * time.Second},
		collectorURL: strings.TrimSuffix(collectorURL, "/") + "/events",
		service:      "go",
		runtime:      "client",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewClient returns an http.Client whose calls are recorded.
func NewClient(collectorURL string, opts ...Option) *http.Client {
	return &http.Client{Transport: NewTransport(collectorURL, opts...)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Per the RoundTripper contract the request must not be mutated.
	req = req.Clone(req.Context())

	traceID := req.Header.Get("X-Trace-Id")
	if traceID == "" {
		traceID = uuid.NewString()
		req.Header.Set("X-Trace-Id", traceID)
	}
	requestID := req.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
		req.Header.Set("X-Request-Id", requestID)
	}

	method := strings.ToUpper(req.Method)
	url := req.URL.String()
	requestBody := captureRequestBody(req)
	start := t.now()

	t.send(event{
		TS:          start.UTC().Format(time.RFC3339Nano),
		Phase:       "request",
		Method:      method,
		URL:         url,
		ReqHeaders:  redactHeaders(req.Header),
		RequestBody: requestBody,
		Service:     t.service,
		Runtime:     t.runtime,
		TraceID:     traceID,
		RequestID:   requestID,
	})

	resp, err := t.base.RoundTrip(req)
	duration := t.now().Sub(start).Milliseconds()

	if err != nil {
		t.send(event{
			TS:           t.now().UTC().Format(time.RFC3339Nano),
			Phase:        "error",
			Method:       method,
			URL:          url,
			DurationMs:   &duration,
			ReqHeaders:   redactHeaders(req.Header),
			RequestBody:  requestBody,
			ErrorMessage: err.Error(),
			Service:      t.service,
			Runtime:      t.runtime,
			TraceID:      traceID,
			RequestID:    requestID,
		})
		return nil, err
	}

	status := resp.StatusCode
	t.send(event{
		TS:           t.now().UTC().Format(time.RFC3339Nano),
		Phase:        "response",
		Method:       method,
		URL:          url,
		Status:       &status,
		DurationMs:   &duration,
		ReqHeaders:   redactHeaders(req.Header),
		ResHeaders:   redactHeaders(resp.Header),
		RequestBody:  requestBody,
		ResponseBody: captureResponseBody(resp),
		Service:      t.service,
		Runtime:      t.runtime,
		TraceID:      traceID,
		RequestID:    requestID,
	})

	return resp, nil
}

// send posts the event in the background and swallows every failure.
func (t *Transport) send(e event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	go func() {
		resp, err := t.report.Post(t.collectorURL, "application/json", bytes.NewReader(data))
		if err != nil {
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
}

// captureRequestBody snapshots the outgoing body via GetBody, which is
// set for all the common body sources and leaves the live body intact.
func captureRequestBody(req *http.Request) any {
	if req.GetBody == nil {
		return nil
	}
	rc, err := req.GetBody()
	if err != nil {
		return nil
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxCapturedBody))
	if err != nil || len(data) == 0 {
		return nil
	}
	return decode(data)
}

// captureResponseBody reads the body up front and replaces it with an
// in-memory copy so the caller still sees the full stream.
func captureResponseBody(resp *http.Response) any {
	if resp.Body == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		resp.Body = http.NoBody
		return nil
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if len(data) == 0 {
		return nil
	}
	if len(data) > maxCapturedBody {
		data = data[:maxCapturedBody]
	}
	return decode(data)
}

func decode(data []byte) any {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	return v
}

// redactHeaders flattens and masks headers on the producer side. The
// producer convention is a substring match, so proxy variants like
// Proxy-Authorization are masked too.
func redactHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for key, values := range h {
		lower := strings.ToLower(key)
		masked := false
		for _, sensitive := range sensitiveHeaders {
			if strings.Contains(lower, sensitive) {
				out[key] = mask
				masked = true
				break
			}
		}
		if !masked {
			out[key] = strings.Join(values, ", ")
		}
	}
	return out
}
