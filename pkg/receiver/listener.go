// Package receiver implements the one-shot greeting listener: it binds a
// TCP port, accepts exactly one connection, reads one greeting and closes.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rescp17/lanGreeter/pkg/concurrency"
	"github.com/rescp17/lanGreeter/pkg/wire"
)

var (
	ErrNotListening     = errors.New("listener is not bound")
	ErrAlreadyListening = errors.New("listener is already bound")
	ErrAlreadyServed    = errors.New("listener already served its connection")
	ErrListenerClosed   = errors.New("listener closed")
)

const DefaultReadTimeout = 10 * time.Second

type ListenerConfig struct {
	// Addr is the host:port to bind, e.g. ":5431".
	Addr        string
	ReadTimeout time.Duration
	// Notify receives human readable progress lines. May be nil.
	Notify func(msg string)
}

// Greeting is the single message a listener receives.
type Greeting struct {
	From       net.Addr
	Message    string
	ReceivedAt time.Time
}

type Listener struct {
	cfg   ListenerConfig
	guard *concurrency.ConcurrencyGuard

	mu     sync.Mutex
	ln     net.Listener
	served bool
	closed bool
}

func NewListener(cfg ListenerConfig) *Listener {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Notify == nil {
		cfg.Notify = func(string) {}
	}
	return &Listener{
		cfg:   cfg,
		guard: concurrency.NewConcurrencyGuard(),
	}
}

// Listen binds the configured address and returns the bound address, which
// differs from the configured one when port 0 was requested.
func (l *Listener) Listen(ctx context.Context) (net.Addr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrListenerClosed
	}
	if l.ln != nil {
		return nil, ErrAlreadyListening
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", l.cfg.Addr, err)
	}
	l.ln = ln

	slog.Info("Listener bound", "addr", ln.Addr().String())
	l.cfg.Notify("Server started")
	return ln.Addr(), nil
}

// Addr returns the bound address, or nil before Listen.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Serve accepts exactly one connection and reads one greeting from it. The
// server socket is closed when Serve returns, whatever the outcome, and a
// ctx that is already done still uses up the listener.
// Cancelling ctx unblocks a pending Accept.
func (l *Listener) Serve(ctx context.Context) (Greeting, error) {
	var greeting Greeting
	err := l.guard.Execute(func() error {
		var err error
		greeting, err = l.serve(ctx)
		return err
	})
	return greeting, err
}

func (l *Listener) serve(ctx context.Context) (Greeting, error) {
	l.mu.Lock()
	ln, served, closed := l.ln, l.served, l.closed
	if ln != nil && !closed {
		l.served = true
	}
	l.mu.Unlock()

	switch {
	case served:
		return Greeting{}, ErrAlreadyServed
	case closed:
		return Greeting{}, ErrListenerClosed
	case ln == nil:
		return Greeting{}, ErrNotListening
	}
	defer l.Close()
	if err := ctx.Err(); err != nil {
		return Greeting{}, err
	}

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return Greeting{}, ctx.Err()
		}
		if l.isClosed() {
			return Greeting{}, ErrListenerClosed
		}
		return Greeting{}, fmt.Errorf("failed to accept connection: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Warn("Failed to close client connection", "error", err)
		}
	}()

	slog.Info("Client connected", "remote", conn.RemoteAddr().String())
	l.cfg.Notify("Client connected to my server")

	if err := conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout)); err != nil {
		return Greeting{}, fmt.Errorf("failed to set read deadline: %w", err)
	}
	msg, err := wire.ReadUTF(conn)
	if err != nil {
		return Greeting{}, fmt.Errorf("failed to read greeting from %s: %w", conn.RemoteAddr(), err)
	}

	slog.Info("Greeting received", "remote", conn.RemoteAddr().String(), "message", msg)
	l.cfg.Notify("Receive message from client: " + msg)
	return Greeting{
		From:       conn.RemoteAddr(),
		Message:    msg,
		ReceivedAt: time.Now(),
	}, nil
}

// Close closes the server socket. It is safe to call more than once.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.ln == nil {
		return nil
	}
	if err := l.ln.Close(); err != nil {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	slog.Info("Listener closed")
	return nil
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
