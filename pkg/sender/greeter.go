// Package sender dials discovered peers and delivers a single greeting.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/rescp17/lanGreeter/pkg/wire"
)

const DefaultDialTimeout = 5 * time.Second

var ErrEmptyAddress = errors.New("peer address is empty")

type GreeterConfig struct {
	Message     string
	DialTimeout time.Duration
	// Notify receives human readable progress lines. May be nil.
	Notify func(msg string)
}

// Greeter sends one greeting per Greet call. It never retries.
type Greeter struct {
	cfg    GreeterConfig
	dialer net.Dialer
}

func NewGreeter(cfg GreeterConfig) *Greeter {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.Notify == nil {
		cfg.Notify = func(string) {}
	}
	return &Greeter{
		cfg:    cfg,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}
}

// Message returns the greeting text sent to peers.
func (g *Greeter) Message() string {
	return g.cfg.Message
}

// Greet connects to addr (host:port), writes the greeting and closes the
// connection.
func (g *Greeter) Greet(ctx context.Context, addr string) (err error) {
	if addr == "" {
		return ErrEmptyAddress
	}
	if n := wire.EncodedLen(g.cfg.Message); n > wire.MaxEncodedLen {
		return fmt.Errorf("%w: %d bytes", wire.ErrTooLong, n)
	}

	g.cfg.Notify("Create client to " + addr)
	conn, err := g.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close connection to %s: %w", addr, cerr)
		}
	}()
	g.cfg.Notify("Client created to " + addr)

	if err := conn.SetWriteDeadline(time.Now().Add(g.cfg.DialTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := wire.WriteUTF(conn, g.cfg.Message); err != nil {
		return fmt.Errorf("failed to send greeting to %s: %w", addr, err)
	}

	slog.Info("Greeting sent", "addr", addr, "message", g.cfg.Message)
	g.cfg.Notify("Client sends message to " + addr)
	return nil
}
