package receiver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/lanGreeter/pkg/concurrency"
	"github.com/rescp17/lanGreeter/pkg/wire"
)

type notes struct {
	mu    sync.Mutex
	lines []string
}

func (n *notes) add(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lines = append(n.lines, msg)
}

func (n *notes) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.lines...)
}

func newLoopbackListener(t *testing.T, n *notes) (*Listener, net.Addr) {
	t.Helper()
	cfg := ListenerConfig{Addr: "127.0.0.1:0", ReadTimeout: time.Second}
	if n != nil {
		cfg.Notify = n.add
	}
	l := NewListener(cfg)
	addr, err := l.Listen(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, addr
}

func sendGreeting(t *testing.T, addr net.Addr, msg string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, wire.WriteUTF(conn, msg))
}

func TestServeReceivesOneGreeting(t *testing.T) {
	n := &notes{}
	l, addr := newLoopbackListener(t, n)

	done := make(chan struct{})
	var greeting Greeting
	var serveErr error
	go func() {
		defer close(done)
		greeting, serveErr = l.Serve(context.Background())
	}()

	sendGreeting(t, addr, "Hello from pixel-7!!!")

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}
	require.NoError(t, serveErr)
	assert.Equal(t, "Hello from pixel-7!!!", greeting.Message)
	assert.NotNil(t, greeting.From)
	assert.Equal(t, []string{
		"Server started",
		"Client connected to my server",
		"Receive message from client: Hello from pixel-7!!!",
	}, n.all())

	// The server socket is gone after the single connection.
	_, err := net.DialTimeout("tcp", addr.String(), 200*time.Millisecond)
	assert.Error(t, err)

	_, err = l.Serve(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyServed)
}

func TestServeBeforeListen(t *testing.T) {
	l := NewListener(ListenerConfig{Addr: "127.0.0.1:0"})
	_, err := l.Serve(context.Background())
	assert.ErrorIs(t, err, ErrNotListening)
}

func TestListenTwice(t *testing.T) {
	l, _ := newLoopbackListener(t, nil)
	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyListening)
}

func TestListenPortInUse(t *testing.T) {
	_, addr := newLoopbackListener(t, nil)
	other := NewListener(ListenerConfig{Addr: addr.String()})
	_, err := other.Listen(context.Background())
	assert.Error(t, err)
}

func TestServeCancelledByContext(t *testing.T) {
	l, _ := newLoopbackListener(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Serve(ctx)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("cancellation did not unblock Accept")
	}
}

func TestCloseUnblocksServe(t *testing.T) {
	l, _ := newLoopbackListener(t, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Serve(context.Background())
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "Close is idempotent")

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrListenerClosed)
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not unblock Accept")
	}

	_, err := l.Listen(context.Background())
	assert.ErrorIs(t, err, ErrListenerClosed)
}

func TestConcurrentServeIsRejected(t *testing.T) {
	l, addr := newLoopbackListener(t, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Serve(context.Background())
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)

	_, err := l.Serve(context.Background())
	assert.ErrorIs(t, err, concurrency.ErrBusy)

	sendGreeting(t, addr, "hi")
	assert.NoError(t, <-errCh)
}

func TestServeRejectsGarbage(t *testing.T) {
	l, addr := newLoopbackListener(t, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Serve(context.Background())
		errCh <- err
	}()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	_, err = conn.Write([]byte{0x00, 0x01, 0xFF})
	require.NoError(t, err)
	conn.Close()

	assert.ErrorIs(t, <-errCh, wire.ErrMalformed)
}

func TestServeReadTimeout(t *testing.T) {
	l := NewListener(ListenerConfig{Addr: "127.0.0.1:0", ReadTimeout: 100 * time.Millisecond})
	addr, err := l.Listen(context.Background())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Serve(context.Background())
		errCh <- err
	}()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case err := <-errCh:
		var netErr net.Error
		require.ErrorAs(t, err, &netErr)
		assert.True(t, netErr.Timeout())
	case <-time.After(3 * time.Second):
		t.Fatal("read deadline was not applied")
	}
}

func TestServeWithDoneContextUsesUpListener(t *testing.T) {
	l, addr := newLoopbackListener(t, nil)

	// A client queued in the backlog before Serve must never be accepted.
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Serve(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = net.DialTimeout("tcp", addr.String(), 200*time.Millisecond)
	assert.Error(t, err, "server socket must be closed after Serve returned")

	_, err = l.Serve(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyServed)
}
