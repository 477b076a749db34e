package uds

import (
	"context"
	"net"
	"time"

	"hwstrat/pkg/exception"
)

const (
	unixNetwork = "unix"

	defaultDialInterval = 100 * time.Millisecond
	maxDialInterval     = 2 * time.Second
)

// Client dials the host link socket.
type Client struct {
	path     string
	attempts int
}

func NewClient(path string) (*Client, error) {
	if path == "" {
		return nil, exception.ErrEmptyPathUDS
	}
	return &Client{path: path}, nil
}

func (c *Client) Path() string {
	if c == nil {
		return ""
	}
	return c.path
}

// Attempts reports how many dials the last DialRetry made.
func (c *Client) Attempts() int {
	if c == nil {
		return 0
	}
	return c.attempts
}

// Dial opens a connection once.
func (c *Client) Dial() (*net.UnixConn, error) {
	if c == nil {
		return nil, exception.ErrNilClientUDS
	}
	return net.DialUnix(unixNetwork, nil, &net.UnixAddr{Name: c.path, Net: unixNetwork})
}

// DialRetry dials until the pipeline accepts or ctx is done. The wait
// between attempts starts at interval and doubles up to two seconds.
// On cancellation it returns ctx.Err() unwrapped.
func (c *Client) DialRetry(ctx context.Context, interval time.Duration) (*net.UnixConn, error) {
	if c == nil {
		return nil, exception.ErrNilClientUDS
	}
	if interval <= 0 {
		interval = defaultDialInterval
	}
	c.attempts = 0
	wait := interval
	for {
		c.attempts++
		conn, err := c.Dial()
		if err == nil {
			return conn, nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		wait = min(2*wait, maxDialInterval)
	}
}
