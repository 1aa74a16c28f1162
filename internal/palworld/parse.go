// Package palworld exposes the administrative operations of a Palworld
// dedicated server: the RCON command surface with typed response parsing,
// and memory telemetry gathered over SSH.
package palworld

import (
	"errors"
	"regexp"
	"strings"
)

// Markers the server embeds in its human-readable replies. Detection is a
// plain substring match; if the server's phrasing ever changes these simply
// stop matching and the outcome reads as failure.
const (
	saveCompleteMarker = "Complete Save"
	shutdownMarker     = "The server will shut down in"
)

// versionPattern matches the bracketed four-component version the server
// prints in its info banner, e.g. "Welcome to Pal Server[v0.1.3.0] ...".
var versionPattern = regexp.MustCompile(`\[v[0-9]{1,9}\.[0-9]{1,9}\.[0-9]{1,9}\.[0-9]{1,9}\]`)

// ErrVersionNotFound is returned when the info banner carries no bracketed
// version string.
var ErrVersionNotFound = errors.New("palworld: no version string in server info")

// Player is one row of the showplayers roster.
type Player struct {
	Name    string `json:"name"`
	UID     string `json:"uid"`
	SteamID string `json:"steamid"`
}

// Outcome is the result of a command whose success is detected by matching a
// known marker in the raw response text.
type Outcome struct {
	Raw     string `json:"raw"`
	Success bool   `json:"success"`
}

// ParsePlayers decodes the showplayers response: a header line followed by
// comma-delimited name,uid,steamid rows. Rows that do not split into exactly
// three fields are dropped without error; a roster with zero valid rows is a
// valid empty result. Player names containing commas therefore produce
// dropped rows, mirroring the server's own ambiguous encoding.
func ParsePlayers(raw string) []Player {
	players := []Player{}

	lines := strings.Split(raw, "\n")
	if len(lines) < 2 {
		return players
	}

	for _, line := range lines[1:] {
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			continue
		}
		players = append(players, Player{Name: fields[0], UID: fields[1], SteamID: fields[2]})
	}

	return players
}

// ParseVersion extracts the server version from free-form banner text,
// returning it without the surrounding brackets (e.g. "v0.1.3.0").
func ParseVersion(raw string) (string, error) {
	match := versionPattern.FindString(raw)
	if match == "" {
		return "", ErrVersionNotFound
	}

	return strings.Trim(match, "[]"), nil
}

// SaveOutcome interprets the response to a save command.
func SaveOutcome(raw string) Outcome {
	return Outcome{Raw: raw, Success: strings.Contains(raw, saveCompleteMarker)}
}

// ShutdownOutcome interprets the response to a shutdown command.
func ShutdownOutcome(raw string) Outcome {
	return Outcome{Raw: raw, Success: strings.Contains(raw, shutdownMarker)}
}

// broadcastCommand builds the broadcast command line. When replacement is
// non-empty, whitespace in the message is rewritten with it first; the server
// cannot transport literal spaces in this command.
func broadcastCommand(message, replacement string) string {
	if replacement != "" {
		message = strings.ReplaceAll(message, " ", replacement)
	}

	return "broadcast " + message
}
