package evently

import "strconv"

// Config carries the connection/retry/heartbeat settings networked
// backends need (spec §6). The core itself is unaware of Config, and so
// are the stores; in this repository only example/todo's connectPool
// reads it, to set up its Postgres pool.
type Config struct {
	APIPort             uint16
	MaxRetryAttempts    uint32
	InitialRetryDelayMs uint32
	SocketTimeoutMs     uint32
	HeartbeatIntervalMs uint32
}

// DefaultConfig returns the defaults named in spec §6.
func DefaultConfig() Config {
	return Config{
		APIPort:             3000,
		MaxRetryAttempts:    5,
		InitialRetryDelayMs: 1000,
		SocketTimeoutMs:     30_000,
		HeartbeatIntervalMs: 15_000,
	}
}

// LoadConfig starts from DefaultConfig and overrides each field whose
// environment variable getenv resolves to a non-empty, parseable value.
// getenv is injected (rather than calling os.Getenv directly) so callers
// can test configuration loading without touching the process
// environment — the same os.Getenv-with-fallback idiom the teacher uses
// in example/account/main.go, just made testable.
func LoadConfig(getenv func(string) string) Config {
	cfg := DefaultConfig()

	if v, ok := parseUint16(getenv("EVENTLY_API_PORT")); ok {
		cfg.APIPort = v
	}
	if v, ok := parseUint32(getenv("EVENTLY_MAX_RETRY_ATTEMPTS")); ok {
		cfg.MaxRetryAttempts = v
	}
	if v, ok := parseUint32(getenv("EVENTLY_INITIAL_RETRY_DELAY_MS")); ok {
		cfg.InitialRetryDelayMs = v
	}
	if v, ok := parseUint32(getenv("EVENTLY_SOCKET_TIMEOUT_MS")); ok {
		cfg.SocketTimeoutMs = v
	}
	if v, ok := parseUint32(getenv("EVENTLY_HEARTBEAT_INTERVAL_MS")); ok {
		cfg.HeartbeatIntervalMs = v
	}

	return cfg
}

func parseUint16(s string) (uint16, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

func parseUint32(s string) (uint32, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
