// main is the entry point of the rcon-palworld CLI.
// It parses the configuration, sets up logging, and runs the selected
// administrative operations against a Palworld server in order, stopping at
// the first failure.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/ic3man5/rcon-palworld/internal/config"
	"github.com/ic3man5/rcon-palworld/internal/logger"
	"github.com/ic3man5/rcon-palworld/internal/meminfo"
	"github.com/ic3man5/rcon-palworld/internal/palworld"
	"github.com/ic3man5/rcon-palworld/internal/rcon"
	"github.com/ic3man5/rcon-palworld/internal/sshexec"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	admin := palworld.NewAdmin(cfg.Host(), cfg.Server.Port, cfg.Server.Password)
	admin.RCON.Options = rcon.Options{
		Quirks:      !cfg.RCON.NoQuirks,
		IdleTimeout: cfg.RCON.IdleTimeout,
		DialTimeout: cfg.RCON.DialTimeout,
	}
	if cfg.Operations.MemorySSH {
		admin.SSH = sshexec.New(cfg.Host(), cfg.SSH.Port, cfg.SSH.Username, cfg.Server.Password)
	}

	if err := run(ctx, cfg, admin); err != nil {
		log.Fatal().Err(err).Msg("Operation failed")
	}

	log.Debug().Msg("Done")
}

// run executes every selected operation in flag order. Results go to stdout,
// the first error aborts the remainder.
func run(ctx context.Context, cfg *config.Config, admin *palworld.Admin) error {
	ops := cfg.Operations
	asJSON := cfg.Server.JSON

	if ops.ListPlayers {
		players, err := admin.ListPlayers(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			if err := emitJSON(players); err != nil {
				return err
			}
		} else {
			fmt.Printf("Got player info: found %d online!\n", len(players))
			fmt.Println("Name\tUID\tSteamID")
			for _, p := range players {
				fmt.Printf("%s\t%s\t%s\n", p.Name, p.UID, p.SteamID)
			}
		}
	}

	if ops.ServerVersion {
		version, err := admin.Version(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			if err := emitJSON(map[string]string{"version": version}); err != nil {
				return err
			}
		} else {
			fmt.Println(version)
		}
	}

	if ops.Save {
		outcome, err := admin.Save(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			if err := emitJSON(outcome); err != nil {
				return err
			}
		} else {
			fmt.Printf("Saved: %t\n", outcome.Success)
		}
	}

	if ops.Shutdown != "" {
		delay, err := cfg.ShutdownDelay()
		if err != nil {
			return err
		}
		outcome, err := admin.Shutdown(ctx, delay, ops.ShutdownMsg)
		if err != nil {
			return err
		}
		if asJSON {
			if err := emitJSON(outcome); err != nil {
				return err
			}
		} else {
			fmt.Printf("Shutdown: %t\n", outcome.Success)
		}
	}

	if ops.Broadcast != "" {
		result, err := admin.Broadcast(ctx, ops.Broadcast, ops.ReplaceSpace)
		if err != nil {
			return err
		}
		fmt.Println(result)
	}

	if ops.Command != "" {
		result, err := admin.RunCommand(ctx, ops.Command)
		if err != nil {
			return err
		}
		fmt.Println(result)
	}

	// Local and remote memory stats are mutually exclusive; local wins.
	if ops.Memory {
		stats, err := meminfo.Local{}.MemoryStats(ctx)
		if err != nil {
			return err
		}
		if err := printStats(stats, asJSON); err != nil {
			return err
		}
	} else if ops.MemorySSH {
		stats, err := admin.MemoryStats(ctx)
		if err != nil {
			return err
		}
		if err := printStats(stats, asJSON); err != nil {
			return err
		}
	}

	return nil
}

// emitJSON marshals v fully before anything is written, so a failed result
// never produces partial output.
func emitJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}

	fmt.Println(string(raw))
	return nil
}

// printStats writes memory statistics to stdout in the selected format.
func printStats(stats *meminfo.Stats, asJSON bool) error {
	if asJSON {
		return emitJSON(stats)
	}

	fmt.Printf("MemTotal:     %d kB\n", stats.Total)
	fmt.Printf("MemFree:      %d kB\n", stats.Free)
	fmt.Printf("MemAvailable: %d kB\n", stats.Available)
	fmt.Printf("Buffers:      %d kB\n", stats.Buffers)
	fmt.Printf("Cached:       %d kB\n", stats.Cached)
	if used, ok := stats.Used(); ok {
		fmt.Printf("Used:         %d kB\n", used)
	}
	if ratio, ok := stats.UsedRatio(); ok {
		fmt.Printf("UsedRatio:    %.2f%%\n", ratio*100)
	}

	return nil
}
