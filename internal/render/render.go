// Package render prints probe results for a human reading a terminal.
package render

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raysh454/authprobe/internal/jsonutil"
	"github.com/raysh454/authprobe/internal/probe"
	"github.com/raysh454/authprobe/internal/utils"
)

const rule = "────────────────────────────────────────────────────────"

// Options controls what is printed per result.
type Options struct {
	ShowHeaders bool
	// Analyze prints a per-field breakdown of JSON object bodies.
	Analyze bool
	// UserFilter selects which users the admin listing summary prints.
	UserFilter string
	// MaxBody caps printed body text; 0 prints everything.
	MaxBody int
}

// Renderer writes results to w. It is not safe for concurrent use.
type Renderer struct {
	w    io.Writer
	opts Options
}

func New(w io.Writer, opts Options) *Renderer {
	return &Renderer{w: w, opts: opts}
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

// Header opens a run.
func (r *Renderer) Header(plan string, steps int) {
	r.printf("=== %s (%d probes) ===\n", plan, steps)
}

// Result prints one probe result.
func (r *Renderer) Result(res probe.Result) {
	req := res.Request
	r.printf("\n%s\n[%s] %s %s\n", rule, req.Name, req.Method, MaskURL(req.URL))
	if req.Body != nil {
		if b, err := jsonutil.MarshalIndent(MaskJSON(req.Body), "", "  "); err == nil {
			r.printf("Body: %s\n", b)
		}
	}

	if res.Failed() {
		r.printf("Error: %v\n", res.Err)
		return
	}

	r.printf("Status: %d %s (%s)\n", res.StatusCode, http.StatusText(res.StatusCode), res.Duration.Round(time.Millisecond))
	if r.opts.ShowHeaders && len(res.Headers) > 0 {
		r.printf("Headers:\n")
		for _, line := range HeaderLines(res.Headers) {
			r.printf("  %s\n", line)
		}
	}
	if msg := res.ErrorMessage(); msg != "" && res.StatusCode >= 400 {
		r.printf("Message: %s\n", msg)
	}
	if res.Title != "" {
		r.printf("Title: %s\n", res.Title)
	}

	switch {
	case res.IsJSON():
		b, err := jsonutil.MarshalIndent(MaskJSON(res.JSON), "", "  ")
		if err != nil {
			r.printf("Response: %s\n", r.clip(res.RawBody))
			break
		}
		r.printf("Response: %s\n", r.clip(string(b)))
	case res.RawBody != "":
		r.printf("Response: %s\n", r.clip(res.RawBody))
		if res.DecodeErr != nil {
			r.printf("JSON decode error: %v\n", res.DecodeErr)
		}
	default:
		r.printf("Response: (empty)\n")
	}
	if res.Truncated {
		r.printf("(body truncated at the transport limit)\n")
	}

	if r.opts.Analyze {
		if lines := Fields(res.JSON); len(lines) > 0 {
			r.printf("\n=== Response Fields Analysis ===\n")
			for _, l := range lines {
				r.printf("%s\n", l)
			}
		}
	}
	if sum, ok := SummarizeUsers(res, r.opts.UserFilter); ok {
		r.users(sum)
	}
}

func (r *Renderer) users(sum UserSummary) {
	r.printf("\nUsers: %d total", sum.Total)
	if sum.Filter == "" {
		r.printf("\n")
		return
	}
	r.printf(", %d matching %q\n", len(sum.Matched), sum.Filter)
	for _, u := range sum.Matched {
		r.printf("  - %s id=%s", u.Email, u.ID)
		if u.Role != "" {
			r.printf(" role=%s", u.Role)
		}
		if !u.Confirmed {
			r.printf(" (unconfirmed)")
		}
		r.printf("\n")
	}
}

// Summary closes a run with one line per probe.
func (r *Renderer) Summary(results []probe.Result) {
	r.printf("\n%s\n=== Summary ===\n", rule)
	for _, res := range results {
		status := fmt.Sprintf("%d", res.StatusCode)
		if res.Failed() {
			status = "ERR"
		}
		line := fmt.Sprintf("%-4s %-28s %s", status, res.Request.Name, res.Request.Method)
		if msg := res.ErrorMessage(); msg != "" && (res.Failed() || res.StatusCode >= 400) {
			line += "  " + msg
		}
		r.printf("%s\n", line)
	}
}

func (r *Renderer) clip(s string) string {
	if r.opts.MaxBody <= 0 || len(s) <= r.opts.MaxBody {
		return s
	}
	head := cut(s, r.opts.MaxBody)
	return head + fmt.Sprintf("... (%d more bytes)", len(s)-len(head))
}

// cut returns at most n bytes of s without splitting a UTF-8 sequence.
func cut(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// secretHeaders hold credentials and are masked when printed.
var secretHeaders = map[string]bool{
	"apikey":        true,
	"authorization": true,
	"cookie":        true,
	"set-cookie":    true,
}

// MaskHeader returns value with credentials masked when name is a credential
// header. Bearer and similar schemes keep the scheme word.
func MaskHeader(name, value string) string {
	if !secretHeaders[strings.ToLower(name)] {
		return value
	}
	if scheme, token, ok := strings.Cut(value, " "); ok {
		return scheme + " " + utils.MaskSecret(token)
	}
	return utils.MaskSecret(value)
}

// HeaderLines formats headers sorted by name, one "Name: value" per value.
func HeaderLines(h http.Header) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []string
	for _, k := range keys {
		for _, v := range h[k] {
			out = append(out, k+": "+MaskHeader(k, v))
		}
	}
	return out
}

// MaskURL masks credential query parameters such as apikey.
func MaskURL(raw string) string {
	return utils.MaskURL(raw)
}

// secretFields are JSON keys whose string values are masked on screen.
var secretFields = map[string]bool{
	"access_token":   true,
	"refresh_token":  true,
	"provider_token": true,
	"password":       true,
}

// MaskJSON returns a copy of v with credential fields masked. Values that
// are not maps or slices pass through untouched.
func MaskJSON(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, val := range node {
			if s, ok := val.(string); ok && secretFields[strings.ToLower(k)] {
				out[k] = utils.MaskSecret(s)
				continue
			}
			out[k] = MaskJSON(val)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, val := range node {
			out[i] = MaskJSON(val)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(node))
		for k, val := range node {
			out[k] = val
		}
		return MaskJSON(out)
	}
	// Typed request bodies are masked through their JSON form.
	b, err := jsonutil.Marshal(v)
	if err != nil {
		return v
	}
	var generic any
	if err := jsonutil.Unmarshal(b, &generic); err != nil {
		return v
	}
	switch generic.(type) {
	case map[string]any, []any:
		return MaskJSON(generic)
	}
	return v
}
