package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// SysHealth is a point-in-time view of the running process.
type SysHealth struct {
	AllocMB    uint64
	SysMB      uint64
	NumGC      uint32
	Goroutines int
	DataSize   string
	Uptime     time.Duration
}

// CollectSysHealth reads runtime memory stats and the size of the file or
// directory at dataPath.
func CollectSysHealth(dataPath string, startedAt time.Time) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h := SysHealth{
		AllocMB:    m.Alloc / 1024 / 1024,
		SysMB:      m.Sys / 1024 / 1024,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
		DataSize:   formatBytes(pathSize(dataPath)),
	}
	if !startedAt.IsZero() {
		h.Uptime = time.Since(startedAt).Truncate(time.Second)
	}
	return h
}

func (h SysHealth) String() string {
	return fmt.Sprintf("mem %d MB (sys %d MB), gc %d, goroutines %d, data %s, up %s",
		h.AllocMB, h.SysMB, h.NumGC, h.Goroutines, h.DataSize, h.Uptime)
}

// pathSize sums regular files under path. WAL and SHM siblings of a SQLite
// file are included.
func pathSize(path string) int64 {
	if path == "" {
		return 0
	}
	var size int64
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		_ = filepath.Walk(p, func(_ string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if !info.IsDir() {
				size += info.Size()
			}
			return nil
		})
	}
	return size
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
