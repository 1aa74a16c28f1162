// Package meminfo decodes /proc/meminfo style key/value text into memory
// statistics, whether the text came from the local machine or from a remote
// shell.
package meminfo

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// kbSuffix matches the byte-count tail of a meminfo line: digits followed by
// the kB unit at end of line.
var kbSuffix = regexp.MustCompile(`[0-9]{1,99} kB$`)

// Stats holds memory counters in kB as reported by the kernel.
type Stats struct {
	Total     uint64 `json:"mem_total"`
	Free      uint64 `json:"mem_free"`
	Available uint64 `json:"mem_available"`
	Buffers   uint64 `json:"buffers"`
	Cached    uint64 `json:"cached"`
}

// Provider is anything that can produce memory statistics, regardless of the
// channel it gathers them over.
type Provider interface {
	MemoryStats(ctx context.Context) (*Stats, error)
}

// Parse decodes line-oriented meminfo text. Keys are matched
// case-insensitively against MemTotal, MemFree, MemAvailable, Buffers, and
// Cached (explicitly excluding SwapCached); lines that match no key or carry
// no kB suffix are ignored, and missing keys leave their field at zero. The
// parser is lenient by contract: partial input yields a partial result, not
// an error.
func Parse(text string) *Stats {
	stats := &Stats{}

	for _, line := range strings.Split(text, "\n") {
		tail := kbSuffix.FindString(line)
		if tail == "" {
			continue
		}

		kb, err := strconv.ParseUint(strings.TrimSuffix(tail, " kB"), 10, 64)
		if err != nil {
			continue
		}

		key := strings.ToLower(line)
		switch {
		case strings.HasPrefix(key, "memtotal:"):
			stats.Total = kb
		case strings.HasPrefix(key, "memfree:"):
			stats.Free = kb
		case strings.HasPrefix(key, "memavailable:"):
			stats.Available = kb
		case strings.HasPrefix(key, "buffers:"):
			stats.Buffers = kb
		case strings.HasPrefix(key, "cached:"):
			// "swapcached:" fails the prefix test, so the explicit
			// SwapCached exclusion holds.
			stats.Cached = kb
		}
	}

	return stats
}

// Used returns Total minus Available. The second return is false when the
// counters are inconsistent (Available above Total) and the value undefined.
func (s *Stats) Used() (uint64, bool) {
	if s.Available > s.Total {
		return 0, false
	}

	return s.Total - s.Available, true
}

// UsedRatio returns the used fraction of total memory, when defined.
func (s *Stats) UsedRatio() (float64, bool) {
	used, ok := s.Used()
	if !ok || s.Total == 0 {
		return 0, false
	}

	return float64(used) / float64(s.Total), true
}

// MarshalJSON includes the derived used and used_ratio fields when they are
// defined for the counters at hand.
func (s *Stats) MarshalJSON() ([]byte, error) {
	type alias Stats
	out := struct {
		alias
		Used      *uint64  `json:"used,omitempty"`
		UsedRatio *float64 `json:"used_ratio,omitempty"`
	}{alias: alias(*s)}

	if used, ok := s.Used(); ok {
		out.Used = &used
	}
	if ratio, ok := s.UsedRatio(); ok {
		out.UsedRatio = &ratio
	}

	return json.Marshal(out)
}
