package sse

import (
	"log/slog"
	"time"
)

// KeepAliveWriter abstracts the write side so keep-alive strategies can be
// tested without a live HTTP connection.
type KeepAliveWriter interface {
	// WriteKeepAlive writes one keep-alive comment. An error means the
	// connection is gone.
	WriteKeepAlive() error
}

// TickerKeepAlive sends keep-alive comments at a fixed interval until
// stopped or the connection drops.
type TickerKeepAlive struct {
	interval time.Duration
	done     chan struct{}
}

func NewTickerKeepAlive(interval time.Duration) *TickerKeepAlive {
	return &TickerKeepAlive{
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins pinging on the interval. The returned channel closes when
// the keep-alive loop terminates, including on write failure.
func (k *TickerKeepAlive) Start(writer KeepAliveWriter, logger *slog.Logger) <-chan struct{} {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					logger.Debug("keep-alive write failed, stopping", "error", err)
					return
				}
			case <-k.done:
				return
			}
		}
	}()
	return stopped
}

// Stop terminates the keep-alive loop. Safe to call multiple times.
func (k *TickerKeepAlive) Stop() {
	select {
	case <-k.done:
	default:
		close(k.done)
	}
}
