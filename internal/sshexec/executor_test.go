package sshexec_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/ic3man5/rcon-palworld/internal/sshexec"
)

const (
	testUser     = "steward"
	testPassword = "hunter2"
)

// testServer is an in-process SSH server that answers every exec request
// with a fixed stdout payload and exit status.
type testServer struct {
	output string
	status uint32

	// lastCommand receives the exec command line for assertions.
	lastCommand chan string
}

func startSSHServer(t *testing.T, output string, status uint32) (*testServer, *sshexec.Executor) {
	t.Helper()

	srv := &testServer{output: output, status: status, lastCommand: make(chan string, 8)}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if meta.User() == testUser && string(password) == testPassword {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serve(conn, cfg)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return srv, sshexec.New("127.0.0.1", addr.Port, testUser, testPassword)
}

func (s *testServer) serve(conn net.Conn, cfg *ssh.ServerConfig) {
	defer func() { _ = conn.Close() }()

	sc, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	defer func() { _ = sc.Close() }()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}

		ch, chReqs, err := newChan.Accept()
		if err != nil {
			continue
		}

		go func() {
			defer func() { _ = ch.Close() }()

			for req := range chReqs {
				if req.Type != "exec" {
					_ = req.Reply(false, nil)
					continue
				}

				var payload struct{ Command string }
				if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
					_ = req.Reply(false, nil)
					continue
				}
				_ = req.Reply(true, nil)
				s.lastCommand <- payload.Command

				_, _ = io.WriteString(ch, s.output)
				_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{s.status}))
				return
			}
		}()
	}
}

func TestRunCapturesOutput(t *testing.T) {
	meminfo := "MemTotal:  16384000 kB\nMemFree:  2048000 kB\n"
	srv, exec := startSSHServer(t, meminfo, 0)

	res, err := exec.Run(context.Background(), "cat /proc/meminfo")
	require.NoError(t, err)
	assert.Equal(t, meminfo, res.Output)
	assert.Equal(t, 0, res.ExitStatus)
	assert.Equal(t, "cat /proc/meminfo", <-srv.lastCommand)
}

func TestRunNonzeroExitIsData(t *testing.T) {
	_, exec := startSSHServer(t, "no such file\n", 2)

	res, err := exec.Run(context.Background(), "cat /does/not/exist")
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitStatus)
	assert.Equal(t, "no such file\n", res.Output)
}

func TestRunBadPassword(t *testing.T) {
	_, exec := startSSHServer(t, "", 0)
	exec.Password = "wrong"

	_, err := exec.Run(context.Background(), "true")
	var ce *sshexec.ConnectionError
	require.ErrorAs(t, err, &ce)
}

func TestRunConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	exec := sshexec.New("127.0.0.1", port, testUser, testPassword)
	_, err = exec.Run(context.Background(), "true")

	var ce *sshexec.ConnectionError
	require.ErrorAs(t, err, &ce)
}

func TestRunCancellation(t *testing.T) {
	// a server that accepts TCP but never speaks SSH keeps the handshake
	// blocked until the context closes the socket
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		time.Sleep(5 * time.Second)
		_ = conn.Close()
	}()

	exec := sshexec.New("127.0.0.1", ln.Addr().(*net.TCPAddr).Port, testUser, testPassword)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = exec.Run(ctx, "true")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
