package webclient

import "time"

type Client string

const (
	ClientNetHTTP Client = "nethttp"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 10 << 20
)

// Config controls how the net/http backend is built.
type Config struct {
	Client Client

	// Timeout bounds every request that does not carry its own Timeout.
	Timeout time.Duration

	// FollowRedirects makes the client chase 3xx responses. Probes report the
	// first response by default.
	FollowRedirects bool

	// MaxBodyBytes caps how much of a response body is read; 0 uses the default.
	MaxBodyBytes int64
}
