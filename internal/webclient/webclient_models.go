package webclient

import (
	"net/http"
	"time"
)

type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
	// Timeout overrides the client timeout for this request when non-zero.
	Timeout time.Duration
}

type Response struct {
	Request    *Request
	Headers    http.Header
	Body       []byte
	StatusCode int
	// Truncated is set when the body was cut at the client's MaxBodyBytes.
	Truncated bool
	FetchedAt time.Time
	Duration  time.Duration
}
