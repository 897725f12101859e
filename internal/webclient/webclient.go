package webclient

import "context"

// WebClient sends one request and returns the raw response. Non-2xx statuses
// are not errors; only transport failures are.
type WebClient interface {
	Do(ctx context.Context, req *Request) (*Response, error)

	// Get is a convenience method for simple GET requests
	Get(ctx context.Context, url string) (*Response, error)

	Close() error
}
