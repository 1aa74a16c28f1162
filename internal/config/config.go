// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/ic3man5/rcon-palworld/internal/logger"
	"github.com/ic3man5/rcon-palworld/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	Server     Server        `group:"Server Options" env-namespace:"PALWORLD"`
	Operations Operations    `group:"Operations"`
	RCON       RCON          `group:"RCON Options" namespace:"rcon" env-namespace:"PALWORLD_RCON"`
	SSH        SSH           `group:"SSH Options" namespace:"ssh" env-namespace:"PALWORLD_SSH"`
	Logger     logger.Config `group:"Logger Options" namespace:"log" env-namespace:"PALWORLD_LOG"`

	Version bool `long:"version" description:"Print version and build info"`

	Args struct {
		Host string `positional-arg-name:"host" description:"Server hostname or IP address (default: localhost)"`
	} `positional-args:"yes"`
}

// Server holds the endpoint shared by every operation.
type Server struct {
	Port     int    `short:"P" long:"port" env:"PORT" description:"RCON port of the server" default:"25575"`
	Password string `short:"p" long:"password" env:"PASSWORD" description:"Server password (RCON and SSH)"`
	JSON     bool   `short:"j" long:"json" description:"Output results in JSON format"`
}

// Operations selects what to do against the server. Several may be combined;
// they run in the declared order and the first failure terminates the run.
type Operations struct {
	ListPlayers   bool   `short:"l" long:"list" description:"List online players (name, UID, SteamID)"`
	ServerVersion bool   `short:"v" long:"server-version" description:"Print the server version"`
	Save          bool   `short:"s" long:"save" description:"Tell the server to save the world"`
	Shutdown      string `short:"S" long:"shutdown" value-name:"SECONDS" optional:"true" optional-value:"30" description:"Shut the server down after a delay in seconds"`
	ShutdownMsg   string `long:"shutdown-message" description:"Message shown to players before shutdown"`
	Broadcast     string `short:"b" long:"broadcast" value-name:"MESSAGE" description:"Broadcast a message to all players"`
	ReplaceSpace  string `short:"r" long:"replace-space" value-name:"STRING" description:"Replace spaces in the broadcast message with this string"`
	Command       string `short:"c" long:"command" value-name:"COMMAND" description:"Send a raw command, print the response to stdout"`
	Memory        bool   `short:"m" long:"memory" description:"Print memory usage of the local machine"`
	MemorySSH     bool   `short:"M" long:"memory-ssh" description:"Print memory usage of the server host via SSH"`
}

// RCON holds transport tuning for the control channel.
type RCON struct {
	NoQuirks    bool          `long:"no-quirks" env:"NO_QUIRKS" description:"Disable multi-packet response reassembly"`
	IdleTimeout time.Duration `long:"idle-timeout" env:"IDLE_TIMEOUT" description:"Reassembly idle timeout between response fragments" default:"300ms"`
	DialTimeout time.Duration `long:"dial-timeout" env:"DIAL_TIMEOUT" description:"TCP connect timeout" default:"5s"`
}

// SSH holds the secure shell channel configuration used for remote telemetry.
type SSH struct {
	Username string `short:"u" long:"user" env:"USERNAME" description:"Username for the SSH connection" default:"root"`
	Port     int    `long:"port" env:"PORT" description:"SSH port of the server host" default:"22"`
}

// Host returns the configured server host, defaulting to localhost.
func (c *Config) Host() string {
	if c.Args.Host == "" {
		return "localhost"
	}

	return c.Args.Host
}

// ShutdownDelay converts the shutdown flag value into a duration. The flag
// stores raw text so that an absent flag is distinguishable from "0".
func (c *Config) ShutdownDelay() (time.Duration, error) {
	seconds, err := strconv.Atoi(c.Operations.Shutdown)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown delay %q: %w", c.Operations.Shutdown, err)
	}

	return time.Duration(seconds) * time.Second, nil
}

// HasOperation reports whether at least one operation flag was selected.
func (c *Config) HasOperation() bool {
	ops := c.Operations
	return ops.ListPlayers || ops.ServerVersion || ops.Save || ops.Shutdown != "" ||
		ops.Broadcast != "" || ops.Command != "" || ops.Memory || ops.MemorySSH
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if !cfg.HasOperation() {
		fmt.Fprintln(os.Stderr, "No operation selected, see --help for the available ones")
		os.Exit(1)
	}

	// Local memory stats are the only operation with no server credential.
	needsPassword := cfg.HasOperation() && !(cfg.Operations.Memory && onlyLocalMemory(cfg.Operations))
	if needsPassword && cfg.Server.Password == "" {
		fmt.Fprintln(os.Stderr,
			"Required flag `-p, --password' or environment variable `PALWORLD_PASSWORD` was not specified!")
		os.Exit(1)
	}

	return &cfg
}

// onlyLocalMemory reports whether local memory stats is the sole selected operation.
func onlyLocalMemory(ops Operations) bool {
	return !ops.ListPlayers && !ops.ServerVersion && !ops.Save && ops.Shutdown == "" &&
		ops.Broadcast == "" && ops.Command == "" && !ops.MemorySSH
}
