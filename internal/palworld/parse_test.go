package palworld

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlayers(t *testing.T) {
	raw := "name,playeruid,steamid\n" +
		"Ailana,1234,5678\n" +
		"not a player row\n" +
		"Bren,2345,6789\n" +
		"too,many,fields,here\n" +
		"Cato,3456,7890"

	players := ParsePlayers(raw)
	require.Len(t, players, 3)
	assert.Equal(t, Player{Name: "Ailana", UID: "1234", SteamID: "5678"}, players[0])
	assert.Equal(t, Player{Name: "Bren", UID: "2345", SteamID: "6789"}, players[1])
	assert.Equal(t, Player{Name: "Cato", UID: "3456", SteamID: "7890"}, players[2])
}

func TestParsePlayersHeaderOnly(t *testing.T) {
	assert.Empty(t, ParsePlayers("name,playeruid,steamid\n"))
}

func TestParsePlayersAllMalformed(t *testing.T) {
	// a roster with zero valid rows is a valid, empty result
	players := ParsePlayers("name,playeruid,steamid\ngarbage\nmore garbage")
	assert.NotNil(t, players)
	assert.Empty(t, players)
}

func TestParsePlayersEmptyInput(t *testing.T) {
	assert.Empty(t, ParsePlayers(""))
}

func TestParseVersion(t *testing.T) {
	version, err := ParseVersion("Welcome to Pal Server[v0.1.3.0] Default Palworld Server")
	require.NoError(t, err)
	assert.Equal(t, "v0.1.3.0", version)
}

func TestParseVersionMissing(t *testing.T) {
	for _, raw := range []string{
		"",
		"Welcome to Pal Server",
		"Welcome to Pal Server[v0.1.3] too few components",
		"no brackets v0.1.3.0 either",
	} {
		_, err := ParseVersion(raw)
		assert.ErrorIs(t, err, ErrVersionNotFound, "input %q", raw)
	}
}

func TestSaveOutcome(t *testing.T) {
	assert.True(t, SaveOutcome("Complete Save").Success)
	assert.True(t, SaveOutcome("... Complete Save ...").Success)
	assert.False(t, SaveOutcome("Saving failed").Success)
	assert.False(t, SaveOutcome("").Success)
}

func TestShutdownOutcome(t *testing.T) {
	assert.True(t, ShutdownOutcome("The server will shut down in 30 seconds.").Success)
	assert.False(t, ShutdownOutcome("unknown command").Success)
}

func TestBroadcastCommand(t *testing.T) {
	assert.Equal(t, "broadcast Server_restart_soon", broadcastCommand("Server restart soon", "_"))
	assert.Equal(t, "broadcast Server restart soon", broadcastCommand("Server restart soon", ""))
	assert.Equal(t, "broadcast nospaces", broadcastCommand("nospaces", "_"))
}
