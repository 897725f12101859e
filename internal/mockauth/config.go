package mockauth

import "github.com/raysh454/authprobe/internal/logging"

// Config holds configuration for the mock service.
type Config struct {
	// Addr is the listen address used by HTTPServer.
	Addr string

	// AnonKey and ServiceKey are the accepted project keys. Both are required.
	AnonKey    string
	ServiceKey string

	Logger logging.Logger
}

// DefaultConfig returns a Config listening on the local mock port. Keys are
// left empty; callers take them from configuration.
func DefaultConfig() Config {
	return Config{
		Addr: "127.0.0.1:9999",
	}
}
