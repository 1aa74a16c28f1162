// Package rcon drives authenticated command sessions against an RCON server.
// Every Execute call is a fresh connect, authenticate, execute, close cycle
// on its own TCP connection; nothing is pooled or reused, so concurrent
// calls never share state and a stuck connection only costs one operation.
package rcon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ic3man5/rcon-palworld/internal/protocol"
)

// DefaultPort is the Source engine RCON port, which Palworld also uses.
const DefaultPort = 25575

const (
	// DefaultDialTimeout bounds the TCP connect for one operation.
	DefaultDialTimeout = 5 * time.Second

	// DefaultIdleTimeout is how long quirks-mode reassembly waits for a
	// further fragment before treating the response as complete.
	DefaultIdleTimeout = 300 * time.Millisecond
)

// ErrAuthFailed is returned when the server echoes id -1 to an auth packet.
// The password is wrong; the client never retries it.
var ErrAuthFailed = errors.New("rcon: authentication failed")

// ConnectionError wraps a network-level failure (refused, reset, timed out)
// on either dial or transfer.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rcon: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a well-framed but semantically wrong response, such
// as an unexpected packet kind during the auth handshake.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "rcon: " + e.Reason
}

// Options control per-call transport behavior.
type Options struct {
	// Quirks enables multi-packet response reassembly: after the command is
	// sent, packets with a matching id are concatenated until an empty-body
	// packet arrives or IdleTimeout elapses without further data. Some
	// server builds split responses or append an empty end marker; the
	// Palworld server is one of them. When false, the first matching packet
	// is the whole response.
	Quirks bool

	// IdleTimeout is the quirks-mode fragment gap. Zero means DefaultIdleTimeout.
	IdleTimeout time.Duration

	// DialTimeout bounds the TCP connect. Zero means DefaultDialTimeout.
	DialTimeout time.Duration
}

// Client issues commands to one RCON endpoint. It holds no connection between
// calls and is safe for concurrent use.
type Client struct {
	Host     string
	Port     int
	Password string
	Options  Options

	seq atomic.Int32
}

// New returns a Client for the given endpoint with quirks-mode reassembly
// enabled, which is what the Palworld server requires.
func New(host string, port int, password string) *Client {
	if port == 0 {
		port = DefaultPort
	}

	c := &Client{
		Host:     host,
		Port:     port,
		Password: password,
		Options: Options{
			Quirks:      true,
			IdleTimeout: DefaultIdleTimeout,
			DialTimeout: DefaultDialTimeout,
		},
	}
	c.seq.Store(1)

	return c
}

// Execute runs one command against the server and returns the response text.
// It dials, authenticates, sends the command, collects the response, and
// closes the socket before returning. Cancelling ctx closes the socket and
// unwinds the call; no state outlives it.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))

	dialer := net.Dialer{Timeout: c.dialTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", &ConnectionError{Op: "dial " + addr, Err: err}
	}
	defer func() { _ = conn.Close() }()

	// Closing the socket is the only way to interrupt a blocked read.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	log.Debug().Str("address", addr).Msg("Connected, authenticating")
	if err := c.authenticate(conn); err != nil {
		return "", err
	}

	id := c.nextID()
	cmd := protocol.Packet{ID: id, Kind: protocol.KindExecCommand, Body: []byte(command)}
	if _, err := cmd.WriteTo(conn); err != nil {
		return "", wrapTransfer("sending command", err)
	}
	log.Debug().Int32("id", id).Str("command", command).Msg("Command sent")

	text, err := c.collect(conn, id)
	if err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", &ConnectionError{Op: "execute", Err: ctx.Err()}
	}

	return text, nil
}

// authenticate performs the password handshake on a fresh connection.
func (c *Client) authenticate(conn net.Conn) error {
	auth := protocol.Packet{ID: c.nextID(), Kind: protocol.KindAuth, Body: []byte(c.Password)}
	if _, err := auth.WriteTo(conn); err != nil {
		return wrapTransfer("sending auth", err)
	}

	// Some servers send an empty ResponseValue ahead of the auth response;
	// skip anything that is not the verdict.
	for {
		var resp protocol.Packet
		if _, err := resp.ReadFrom(conn); err != nil {
			return wrapTransfer("reading auth response", err)
		}

		if resp.ID == protocol.AuthFailedID {
			return ErrAuthFailed
		}
		if resp.Kind == protocol.KindAuthResponse {
			if resp.ID != auth.ID {
				return &ProtocolError{fmt.Sprintf("auth response id %d does not match request id %d", resp.ID, auth.ID)}
			}
			return nil
		}
		if resp.Kind != protocol.KindResponseValue {
			return &ProtocolError{fmt.Sprintf("unexpected packet kind %d during auth handshake", resp.Kind)}
		}
	}
}

// collect gathers the response to the command with the given id. In quirks
// mode it concatenates matching fragments until an empty-body packet with the
// same id arrives or the idle timeout expires, whichever comes first.
func (c *Client) collect(conn net.Conn, id int32) (string, error) {
	var body []byte

	for {
		var resp protocol.Packet
		if _, err := resp.ReadFrom(conn); err != nil {
			var netErr net.Error
			if len(body) > 0 && errors.As(err, &netErr) && netErr.Timeout() {
				// Idle gap with data in hand: the response is complete.
				break
			}
			return "", wrapTransfer("reading response", err)
		}

		if resp.ID != id {
			log.Debug().Int32("want", id).Int32("got", resp.ID).Msg("Dropping packet with stale id")
			continue
		}

		if !c.Options.Quirks {
			return string(resp.Body), nil
		}

		if len(resp.Body) == 0 {
			break
		}
		body = append(body, resp.Body...)

		// Only inter-fragment gaps get the short deadline; the first
		// fragment may take as long as the server needs.
		_ = conn.SetReadDeadline(time.Now().Add(c.idleTimeout()))
	}

	return string(body), nil
}

// nextID returns the next request id: monotonically increasing, wrapping back
// to 1 at MaxInt32 so it can never collide with the -1 auth failure marker.
func (c *Client) nextID() int32 {
	for {
		cur := c.seq.Load()
		id := cur
		if id <= 0 || id == math.MaxInt32 {
			id = 1
		}
		if c.seq.CompareAndSwap(cur, id+1) {
			return id
		}
	}
}

func (c *Client) dialTimeout() time.Duration {
	if c.Options.DialTimeout > 0 {
		return c.Options.DialTimeout
	}
	return DefaultDialTimeout
}

func (c *Client) idleTimeout() time.Duration {
	if c.Options.IdleTimeout > 0 {
		return c.Options.IdleTimeout
	}
	return DefaultIdleTimeout
}

// wrapTransfer classifies a send/receive failure. Network-level causes
// (reset, deadline, closed socket) are connection errors even when they
// surface mid-frame; a malformed or cleanly truncated frame stays a framing
// error.
func wrapTransfer(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ConnectionError{Op: op, Err: err}
	}

	var fe *protocol.FramingError
	if errors.As(err, &fe) {
		return err
	}

	return &ConnectionError{Op: op, Err: err}
}
