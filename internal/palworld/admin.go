package palworld

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ic3man5/rcon-palworld/internal/meminfo"
	"github.com/ic3man5/rcon-palworld/internal/rcon"
	"github.com/ic3man5/rcon-palworld/internal/sshexec"
)

// DefaultShutdownDelay is used when a shutdown is requested without an
// explicit delay.
const DefaultShutdownDelay = 30 * time.Second

// meminfoCommand gathers the remote memory statistics. Only the lines the
// decoder cares about are shipped back.
const meminfoCommand = `cat /proc/meminfo | grep -e 'Mem' -e 'Cached' -e 'Buffers'`

// Admin is the administration facade for one server. RCON carries the
// command surface; SSH, when configured, carries memory telemetry. An Admin
// holds no open connections; every operation is a self-contained cycle on
// the underlying channel.
type Admin struct {
	RCON *rcon.Client
	SSH  *sshexec.Executor
}

// NewAdmin returns an Admin speaking RCON to host:port. Attach an SSH
// executor to enable MemoryStats.
func NewAdmin(host string, port int, password string) *Admin {
	return &Admin{RCON: rcon.New(host, port, password)}
}

// ListPlayers returns the current roster via the showplayers command.
func (a *Admin) ListPlayers(ctx context.Context) ([]Player, error) {
	raw, err := a.RCON.Execute(ctx, "showplayers")
	if err != nil {
		return nil, err
	}

	return ParsePlayers(raw), nil
}

// Version returns the server version extracted from the info banner.
func (a *Admin) Version(ctx context.Context) (string, error) {
	raw, err := a.RCON.Execute(ctx, "info")
	if err != nil {
		return "", err
	}

	return ParseVersion(raw)
}

// Save asks the server to save the world and reports whether the server
// acknowledged completion.
func (a *Admin) Save(ctx context.Context) (Outcome, error) {
	raw, err := a.RCON.Execute(ctx, "save")
	if err != nil {
		return Outcome{}, err
	}

	return SaveOutcome(raw), nil
}

// Shutdown schedules a server shutdown after delay (DefaultShutdownDelay when
// zero) with an optional message shown to players, and reports whether the
// server acknowledged it.
func (a *Admin) Shutdown(ctx context.Context, delay time.Duration, message string) (Outcome, error) {
	if delay <= 0 {
		delay = DefaultShutdownDelay
	}

	cmd := fmt.Sprintf("shutdown %d %s", int(delay.Seconds()), message)
	raw, err := a.RCON.Execute(ctx, cmd)
	if err != nil {
		return Outcome{}, err
	}
	log.Debug().Str("response", raw).Msg("Shutdown requested")

	return ShutdownOutcome(raw), nil
}

// Broadcast shows a message to every connected player. A non-empty
// replacement rewrites whitespace in the message before sending (the server
// drops anything after the first space otherwise). Returns the raw server
// response.
func (a *Admin) Broadcast(ctx context.Context, message, replacement string) (string, error) {
	return a.RCON.Execute(ctx, broadcastCommand(message, replacement))
}

// RunCommand sends a raw command string and returns the raw response text.
func (a *Admin) RunCommand(ctx context.Context, command string) (string, error) {
	return a.RCON.Execute(ctx, command)
}

// MemoryStats gathers memory statistics from the server host over SSH.
func (a *Admin) MemoryStats(ctx context.Context) (*meminfo.Stats, error) {
	if a.SSH == nil {
		return nil, errors.New("palworld: no SSH executor configured")
	}

	res, err := a.SSH.Run(ctx, meminfoCommand)
	if err != nil {
		return nil, err
	}
	if res.ExitStatus != 0 {
		log.Warn().Int("exit_status", res.ExitStatus).Msg("meminfo command exited nonzero, parsing output anyway")
	}

	return meminfo.Parse(res.Output), nil
}

var _ meminfo.Provider = (*Admin)(nil)
