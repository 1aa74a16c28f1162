// Package sshexec runs single commands on a remote host over SSH with
// password authentication. One command, one session, one connection per
// call; nothing is reused.
package sshexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// DefaultPort is the standard SSH port.
const DefaultPort = 22

// DefaultDialTimeout bounds the TCP connect and key exchange.
const DefaultDialTimeout = 10 * time.Second

// ConnectionError wraps any transport, handshake, or authentication failure.
// Callers have no use for a finer distinction on this channel.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ssh: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one remote command. A nonzero exit status is
// data, not an error; what it means depends on the command.
type Result struct {
	Output     string `json:"output"`
	ExitStatus int    `json:"exit_status"`
}

// Executor runs commands against one SSH endpoint. It holds no connection
// between calls and is safe for concurrent use.
type Executor struct {
	Host     string
	Port     int
	Username string
	Password string

	// DialTimeout bounds the connect and handshake. Zero means DefaultDialTimeout.
	DialTimeout time.Duration
}

// New returns an Executor for the given endpoint.
func New(host string, port int, username, password string) *Executor {
	if port == 0 {
		port = DefaultPort
	}

	return &Executor{Host: host, Port: port, Username: username, Password: password}
}

// Run executes one command and captures its stdout and exit status. The ssh
// library blocks through handshake and channel I/O, so all of it runs in its
// own goroutine; cancelling ctx closes the underlying socket, which unwinds
// the blocked calls and releases the server-side session.
func (e *Executor) Run(ctx context.Context, command string) (*Result, error) {
	addr := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))

	timeout := e.DialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Op: "dial " + addr, Err: err}
	}

	type outcome struct {
		res *Result
		err error
	}
	ch := make(chan outcome, 1)

	go func() {
		res, err := e.runOn(conn, addr, command)
		ch <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		_ = conn.Close()
		return nil, &ConnectionError{Op: "run", Err: ctx.Err()}
	case out := <-ch:
		return out.res, out.err
	}
}

// runOn performs the blocking ssh work on an established TCP connection.
func (e *Executor) runOn(conn net.Conn, addr, command string) (*Result, error) {
	cfg := &ssh.ClientConfig{
		User:            e.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(e.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec G106 -- admin tool, host identity is out of scope
		Timeout:         e.DialTimeout,
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, &ConnectionError{Op: "handshake " + addr, Err: err}
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer func() { _ = client.Close() }()

	sess, err := client.NewSession()
	if err != nil {
		return nil, &ConnectionError{Op: "open session", Err: err}
	}
	defer func() { _ = sess.Close() }()

	var stdout bytes.Buffer
	sess.Stdout = &stdout

	log.Debug().Str("address", addr).Str("command", command).Msg("Running remote command")

	status := 0
	if err := sess.Run(command); err != nil {
		var exitErr *ssh.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &ConnectionError{Op: "run command", Err: err}
		}
		status = exitErr.ExitStatus()
	}

	return &Result{Output: stdout.String(), ExitStatus: status}, nil
}
