package probe

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Method is the subset of HTTP verbs a probe may use.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodHead    Method = http.MethodHead
	MethodOptions Method = http.MethodOptions
)

// Kind selects the transport used for a probe.
type Kind string

const (
	KindHTTP      Kind = "http"
	KindWebSocket Kind = "websocket"
)

var (
	ErrInvalidMethod       = errors.New("method must be GET, POST, HEAD or OPTIONS")
	ErrBodyNotSerializable = errors.New("body is not JSON-serializable")
	ErrNoWebSocket         = errors.New("no websocket prober configured")
	ErrNotJSON             = errors.New("body is not valid JSON")
	ErrSchemeKind          = errors.New("url scheme does not match probe kind")
)

// ParseMethod upper-cases s and checks it is an allowed probe method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodGet, MethodPost, MethodHead, MethodOptions:
		return m, nil
	case "":
		return MethodGet, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidMethod)
}

// Request describes a single probe. It is built once and never mutated.
type Request struct {
	Name    string            `json:"name"`
	Kind    Kind              `json:"kind,omitempty"`
	Method  Method            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	// Body is JSON-encoded when non-nil.
	Body any `json:"body,omitempty"`
	// Timeout overrides the runner timeout when non-zero.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Result is what a single probe produced. It corresponds 1:1 to Request.
type Result struct {
	Request    Request
	StatusCode int
	Headers    http.Header
	RawBody    string
	// JSON holds the parsed body when it was valid JSON.
	JSON any
	// DecodeErr is set when a non-empty body was not valid JSON.
	DecodeErr error
	// Title is the HTML <title> for HTML bodies.
	Title     string
	Truncated bool
	// Err is a validation or transport failure; StatusCode is 0 when set.
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Failed reports whether the probe never got a response.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// IsJSON reports whether the body parsed as JSON.
func (r *Result) IsJSON() bool {
	return r.JSON != nil
}

// Lookup walks the parsed JSON body by object keys and array indexes,
// e.g. Lookup("user", "id") or Lookup("0", "email").
func (r *Result) Lookup(path ...string) (any, bool) {
	cur := r.JSON
	if cur == nil {
		return nil, false
	}
	for _, key := range path {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// LookupString is Lookup for string leaves.
func (r *Result) LookupString(path ...string) string {
	v, ok := r.Lookup(path...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// errorKeys are the fields auth and REST backends use for failure messages,
// in the order they are checked.
var errorKeys = []string{"error_description", "msg", "message", "error", "error_code", "hint"}

// ErrorMessage returns the failure message the server put in a JSON body, or
// the transport error text when there was no response.
func (r *Result) ErrorMessage() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	obj, ok := r.JSON.(map[string]any)
	if !ok {
		return ""
	}
	for _, k := range errorKeys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
