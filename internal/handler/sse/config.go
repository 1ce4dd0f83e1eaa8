package sse

import "time"

// Config holds per-stream settings.
type Config struct {
	// KeepAliveInterval spaces the comment pings that keep proxies from
	// timing out an idle stream.
	KeepAliveInterval time.Duration
}

// DefaultConfig uses a 10 second keep-alive, safe for common proxies.
func DefaultConfig() *Config {
	return &Config{KeepAliveInterval: 10 * time.Second}
}
