package meminfo

import (
	"context"
	"fmt"
	"os"
)

const procMeminfo = "/proc/meminfo"

// Local reads memory statistics from the local kernel.
type Local struct{}

// MemoryStats parses the local /proc/meminfo.
func (Local) MemoryStats(_ context.Context) (*Stats, error) {
	raw, err := os.ReadFile(procMeminfo)
	if err != nil {
		return nil, fmt.Errorf("meminfo: reading %s: %w", procMeminfo, err)
	}

	return Parse(string(raw)), nil
}

var _ Provider = Local{}
