package normalize

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/wiretrace/wiretrace/internal/model"
	"github.com/wiretrace/wiretrace/internal/pkg/apperrors"
)

// MaxBodyBytes bounds the serialized size of a stored request/response body.
const MaxBodyBytes = 200 * 1024

const truncationMarker = `..."[TRUNCATED]`

// tsLayout matches the millisecond-precision timestamps producers send.
const tsLayout = "2006-01-02T15:04:05.000Z07:00"

// Normalize converts a raw producer event into its canonical form: it
// validates phase and url, defaults the timestamp, decomposes the URL,
// redacts both header mappings and serializes the bodies under the size
// bound. Malformed URLs and oversized bodies degrade gracefully; only a
// missing url, missing phase or unknown phase value is an error.
func Normalize(raw *model.IncomingEvent, now time.Time) (*model.Event, error) {
	if strings.TrimSpace(raw.URL) == "" {
		return nil, apperrors.NewInvalidEvent("missing required field: url")
	}
	switch raw.Phase {
	case model.PhaseRequest, model.PhaseResponse, model.PhaseError:
	case "":
		return nil, apperrors.NewInvalidEvent("missing required field: phase")
	default:
		return nil, apperrors.NewInvalidEvent(fmt.Sprintf("invalid phase: %q", raw.Phase))
	}

	ts, tsMs := resolveTimestamp(raw.TS, now)
	host, path := splitURL(raw.URL)

	reqHeaders, _ := json.Marshal(RedactHeaders(raw.ReqHeaders))
	resHeaders, _ := json.Marshal(RedactHeaders(raw.ResHeaders))

	reqBody, reqTruncated := serializeBody(raw.RequestBody)
	resBody, resTruncated := serializeBody(raw.ResponseBody)

	var method *string
	if m := strings.ToUpper(strings.TrimSpace(raw.Method)); m != "" {
		method = &m
	}

	return &model.Event{
		TS:               ts,
		TSMs:             tsMs,
		Phase:            raw.Phase,
		Method:           method,
		URL:              raw.URL,
		Host:             host,
		Path:             path,
		Status:           raw.Status,
		DurationMs:       raw.DurationMs,
		Service:          strOrNil(raw.Service),
		Runtime:          strOrNil(raw.Runtime),
		TraceID:          strOrNil(raw.TraceID),
		RequestID:        strOrNil(raw.RequestID),
		ReqHeadersJSON:   string(reqHeaders),
		ResHeadersJSON:   string(resHeaders),
		RequestBodyJSON:  reqBody,
		ResponseBodyJSON: resBody,
		ErrorMessage:     strOrNil(raw.ErrorMessage),
		Truncated:        reqTruncated || resTruncated,
	}, nil
}

// resolveTimestamp keeps the supplied ts when it parses; anything else
// falls back to the capture instant so ts and ts_ms always agree.
func resolveTimestamp(raw string, now time.Time) (string, int64) {
	if raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return raw, t.UnixMilli()
		}
	}
	return now.UTC().Format(tsLayout), now.UnixMilli()
}

// splitURL derives host and path+query from the original URL. A string
// that does not parse as an absolute URL leaves host nil and carries
// the raw value in path, so ingestion never fails on a bad URL.
func splitURL(raw string) (*string, *string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, &raw
	}
	host := u.Host
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return &host, &path
}

// serializeBody renders a body to its stored JSON text. Absent bodies
// store the null literal. Text longer than MaxBodyBytes is cut to a
// prefix plus a truncation marker.
func serializeBody(body any) (string, bool) {
	if body == nil {
		return "null", false
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "null", false
	}
	if len(data) <= MaxBodyBytes {
		return string(data), false
	}
	return string(data[:MaxBodyBytes-50]) + truncationMarker, true
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
