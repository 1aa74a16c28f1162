package meminfo

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	text := "MemTotal:  16384000 kB\n" +
		"MemFree:  2048000 kB\n" +
		"MemAvailable: 8192000 kB"

	stats := Parse(text)
	assert.Equal(t, uint64(16384000), stats.Total)
	assert.Equal(t, uint64(2048000), stats.Free)
	assert.Equal(t, uint64(8192000), stats.Available)
	assert.Zero(t, stats.Buffers)
	assert.Zero(t, stats.Cached)

	used, ok := stats.Used()
	require.True(t, ok)
	assert.Equal(t, uint64(8192000), used)

	ratio, ok := stats.UsedRatio()
	require.True(t, ok)
	assert.InDelta(t, 0.5, ratio, 1e-9)
}

func TestParseFullMeminfo(t *testing.T) {
	text := "MemTotal:       32658256 kB\n" +
		"MemFree:         1422288 kB\n" +
		"MemAvailable:   24289348 kB\n" +
		"Buffers:         1517824 kB\n" +
		"Cached:         20187480 kB\n" +
		"SwapCached:        12345 kB\n" +
		"SwapTotal:       8388604 kB\n" +
		"Dirty:               492 kB\n"

	stats := Parse(text)
	assert.Equal(t, uint64(32658256), stats.Total)
	assert.Equal(t, uint64(1422288), stats.Free)
	assert.Equal(t, uint64(24289348), stats.Available)
	assert.Equal(t, uint64(1517824), stats.Buffers)
	// Cached must not pick up the SwapCached line
	assert.Equal(t, uint64(20187480), stats.Cached)
}

func TestParseCaseInsensitiveKeys(t *testing.T) {
	stats := Parse("MEMTOTAL: 100 kB\nmemfree: 25 kB")
	assert.Equal(t, uint64(100), stats.Total)
	assert.Equal(t, uint64(25), stats.Free)
}

func TestParseIgnoresJunk(t *testing.T) {
	text := "MemTotal: not a number kB\n" +
		"MemFree 512 kB trailing text\n" +
		"HugePages_Total:       0\n" +
		"random line\n"

	stats := Parse(text)
	assert.Equal(t, &Stats{}, stats)
}

func TestParseEmptyInput(t *testing.T) {
	assert.Equal(t, &Stats{}, Parse(""))
}

func TestUsedUndefined(t *testing.T) {
	// inconsistent counters: available above total
	stats := &Stats{Total: 100, Available: 200}

	_, ok := stats.Used()
	assert.False(t, ok)
	_, ok = stats.UsedRatio()
	assert.False(t, ok)
}

func TestUsedRatioZeroTotal(t *testing.T) {
	_, ok := (&Stats{}).UsedRatio()
	assert.False(t, ok)
}

func TestMarshalJSON(t *testing.T) {
	stats := &Stats{Total: 16384000, Free: 2048000, Available: 8192000}

	raw, err := json.Marshal(stats)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, float64(16384000), decoded["mem_total"])
	assert.Equal(t, float64(8192000), decoded["used"])
	assert.InDelta(t, 0.5, decoded["used_ratio"], 1e-9)
}

func TestMarshalJSONOmitsUndefinedUsed(t *testing.T) {
	raw, err := json.Marshal(&Stats{Total: 100, Available: 200})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NotContains(t, decoded, "used")
	assert.NotContains(t, decoded, "used_ratio")
}
