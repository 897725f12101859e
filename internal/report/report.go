// Package report collects the results of one run into a document that can be
// written to disk and compared with a later run.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raysh454/authprobe/internal/jsonutil"
	"github.com/raysh454/authprobe/internal/probe"
	"github.com/raysh454/authprobe/internal/render"
)

// Report is one run of a plan. Entries are in plan order.
type Report struct {
	Plan       string    `json:"plan"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Entries    []Entry   `json:"entries"`
}

// Entry is the on-disk form of a probe.Result. Credentials in the URL and
// request headers are masked before they get here.
type Entry struct {
	Name           string              `json:"name"`
	Kind           string              `json:"kind,omitempty"`
	Method         string              `json:"method"`
	URL            string              `json:"url"`
	RequestHeaders map[string]string   `json:"request_headers,omitempty"`
	RequestBody    any                 `json:"request_body,omitempty"`
	Status         int                 `json:"status"`
	Headers        map[string][]string `json:"headers,omitempty"`
	Body           string              `json:"body,omitempty"`
	JSON           any                 `json:"json,omitempty"`
	DecodeError    string              `json:"decode_error,omitempty"`
	Title          string              `json:"title,omitempty"`
	Truncated      bool                `json:"truncated,omitempty"`
	Error          string              `json:"error,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	DurationMS     int64               `json:"duration_ms"`
}

// New starts an empty report for plan.
func New(plan string, started time.Time) *Report {
	return &Report{Plan: plan, StartedAt: started}
}

// Add appends a result.
func (r *Report) Add(res probe.Result) {
	r.Entries = append(r.Entries, FromResult(res))
}

// Finish stamps the end of the run.
func (r *Report) Finish(t time.Time) {
	r.FinishedAt = t
}

// FromResult converts a result to its report entry.
func FromResult(res probe.Result) Entry {
	e := Entry{
		Name:        res.Request.Name,
		Kind:        string(res.Request.Kind),
		Method:      string(res.Request.Method),
		URL:         render.MaskURL(res.Request.URL),
		RequestBody: maskBody(res.Request.Body),
		Status:      res.StatusCode,
		Body:        res.RawBody,
		JSON:        res.JSON,
		Title:       res.Title,
		Truncated:   res.Truncated,
		StartedAt:   res.StartedAt,
		DurationMS:  res.Duration.Milliseconds(),
	}
	if len(res.Request.Headers) > 0 {
		e.RequestHeaders = make(map[string]string, len(res.Request.Headers))
		for k, v := range res.Request.Headers {
			e.RequestHeaders[k] = render.MaskHeader(k, v)
		}
	}
	if len(res.Headers) > 0 {
		e.Headers = make(map[string][]string, len(res.Headers))
		for k, vs := range res.Headers {
			masked := make([]string, len(vs))
			for i, v := range vs {
				masked[i] = render.MaskHeader(k, v)
			}
			e.Headers[k] = masked
		}
	}
	if res.DecodeErr != nil {
		e.DecodeError = res.DecodeErr.Error()
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	return e
}

func maskBody(body any) any {
	if body == nil {
		return nil
	}
	return render.MaskJSON(body)
}

// Write stores the report as indented JSON, creating parent directories.
func (r *Report) Write(path string) error {
	data, err := jsonutil.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	// Response bodies may carry session tokens.
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Load reads a report written by Write.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := jsonutil.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
