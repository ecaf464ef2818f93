// Package client owns the single connection to the controlling core process.
//
// The adapter is always the connecting side and holds exactly one connection
// for the life of the process. Two activities run for the connection's
// lifetime:
//
//   - one sequential read loop, decoding inbound bytes into frames and
//     feeding the dispatcher (the stream must have a single consumer or
//     frame boundaries are lost), and
//   - one writer goroutine, draining the outbound channel and writing one
//     frame at a time, which is the only thing that touches the socket's
//     write side — concurrent completions can never interleave mid-frame.
//
// There is no retry and no reconnect: if the socket cannot be established or
// is lost, Run returns an error and the process is expected to exit.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"nerve-search-adapter/dispatch"
	"nerve-search-adapter/protocol"
	"nerve-search-adapter/search"
	"nerve-search-adapter/tracker"
)

// State is the connection lifecycle. Transitions run strictly forward:
// Disconnected → Connecting → Connected → Closed, never re-entered.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrConnectionClosed reports that the peer closed the socket.
var ErrConnectionClosed = errors.New("client: connection closed by peer")

const (
	defaultDialTimeout = 5 * time.Second
	// outboundBuffer sizes the completion channel. Executions block on emit
	// once it fills, which is fine: the writer drains it continuously.
	outboundBuffer = 64
)

// Config configures the connection.
type Config struct {
	// SocketPath is the Unix-domain socket of the controlling core.
	SocketPath string
	// DialTimeout bounds the single connection attempt. Zero means the
	// default of 5s.
	DialTimeout time.Duration
}

// Client is the process-wide connection owner.
type Client struct {
	cfg     Config
	handler search.HandlerFunc
	log     *zap.Logger
	state   atomic.Int32
}

// New creates a client. handler is the (possibly middleware-wrapped) search
// engine entry point.
func New(cfg Config, handler search.HandlerFunc, log *zap.Logger) *Client {
	return &Client{
		cfg:     cfg,
		handler: handler,
		log:     log,
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Run dials the socket once and services the connection until it fails, a
// protocol error occurs, or ctx is cancelled.
//
// The return value is nil only for a requested shutdown (ctx cancelled). A
// lost or never-established connection and a malformed frame both return a
// non-nil error; the caller terminates the process on it. Run never retries.
func (c *Client) Run(ctx context.Context) error {
	c.setState(StateConnecting)
	timeout := c.cfg.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}
	conn, err := net.DialTimeout("unix", c.cfg.SocketPath, timeout)
	if err != nil {
		c.setState(StateClosed)
		return fmt.Errorf("connect %s: %w", c.cfg.SocketPath, err)
	}
	c.setState(StateConnected)
	c.log.Info("connected to core", zap.String("socket", c.cfg.SocketPath))

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the socket is the only way to unblock a pending Read, so the
	// connection context's end must close it.
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	out := make(chan *protocol.Frame, outboundBuffer)
	tr := tracker.New()
	disp := dispatch.New(connCtx, tr, c.handler, out, c.log)

	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case f := <-out:
				if err := protocol.Encode(conn, f); err != nil {
					writeErr <- err
					cancel()
					return
				}
			case <-connCtx.Done():
				return
			}
		}
	}()

	runErr := c.readLoop(conn, disp)

	// Teardown: release every in-flight execution, wait for them to drain,
	// then close for good.
	cancel()
	tr.CancelAll()
	disp.Wait()
	conn.Close()
	c.setState(StateClosed)

	select {
	case werr := <-writeErr:
		runErr = fmt.Errorf("write: %w", werr)
	default:
	}
	if ctx.Err() != nil {
		// Shutdown was requested; socket errors caused by our own teardown
		// are not failures.
		c.log.Info("connection closed on shutdown")
		return nil
	}
	return runErr
}

// readLoop is the single sequential consumer of inbound bytes. It returns
// when the stream ends or cannot be decoded; frames decoded before the
// failure are still dispatched.
func (c *Client) readLoop(conn net.Conn, disp *dispatch.Dispatcher) error {
	reader := protocol.NewReader()
	for {
		frames, err := reader.ReadFrom(conn)
		for _, f := range frames {
			disp.Dispatch(f)
		}
		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, protocol.ErrMalformedFrame):
			// Byte alignment is lost; the stream cannot be resynchronized.
			c.log.Error("protocol error, terminating connection", zap.Error(err))
			return fmt.Errorf("protocol error: %w", err)
		case errors.Is(err, io.EOF):
			c.log.Warn("connection closed by peer")
			return ErrConnectionClosed
		default:
			c.log.Warn("connection read failed", zap.Error(err))
			return fmt.Errorf("read: %w", err)
		}
	}
}
