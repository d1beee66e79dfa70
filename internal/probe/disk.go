package probe

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"vigil/internal/models"
)

// Disk reports unhealthy when the filesystem holding the target path is
// fuller than max_used_pct.
type Disk struct {
	statfs func(path string) (total, used uint64, err error)
}

func (p *Disk) Check(ctx context.Context, t models.Target) models.ProbeResult {
	statfs := p.statfs
	if statfs == nil {
		statfs = readDiskUsage
	}
	start := time.Now()
	total, used, err := statfs(t.Address)
	latency := time.Since(start)
	if err != nil {
		return unhealthyResult(latency, fmt.Sprintf("statfs %s: %v", t.Address, err))
	}
	if total == 0 {
		return unhealthyResult(latency, fmt.Sprintf("statfs %s: zero-size filesystem", t.Address))
	}
	usedPct := 100 * float64(used) / float64(total)
	diag := fmt.Sprintf("%s %.1f%% used (threshold %.1f%%)", t.Address, usedPct, t.MaxUsedPct)
	if usedPct > t.MaxUsedPct {
		return unhealthyResult(latency, diag)
	}
	return healthyResult(latency, diag)
}

func readDiskUsage(path string) (total, used uint64, err error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	total = st.Blocks * uint64(st.Bsize)
	free := st.Bavail * uint64(st.Bsize)
	used = total - free
	return total, used, nil
}
