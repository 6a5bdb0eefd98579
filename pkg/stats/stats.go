package stats

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const gigabyte = 1 << 30

// EnableMemoryStatistics starts a goroutine that periodically logs memory
// usage and goroutine count of the process. On context cancellation the
// gathered metrics are dumped to a file under statsDir.
func EnableMemoryStatistics(
	ctx context.Context,
	interval time.Duration,
	statsDir string,
	gatherer prometheus.Gatherer,
) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				PrintMemoryStatistics()
				PrintNumOfRoutines()
			case <-ctx.Done():
				if err := DumpMetrics(statsDir, gatherer); err != nil {
					log.WithError(err).Warn("failed to dump metrics")
				}
				return
			}
		}
	}()
}

func toGigabytes(bytes uint64) float64 {
	return float64(bytes) / gigabyte
}

// PrintMemoryStatistics logs memory statistics using the go runtime library.
func PrintMemoryStatistics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	log.Infof(
		"Total allocated: %.3fGB, Heap allocated: %.3fGB, "+
			"Allocated objects count: %v, Freed objects count: %v",
		toGigabytes(memStats.TotalAlloc),
		toGigabytes(memStats.HeapAlloc),
		memStats.Mallocs,
		memStats.Frees,
	)
}

// PrintNumOfRoutines logs the number of goroutines currently running.
func PrintNumOfRoutines() {
	log.Infof("Num of go routines: %v", runtime.NumGoroutine())
}

// DumpMetrics appends the gathered metric families to a timestamped file
// under statsDir.
func DumpMetrics(statsDir string, gatherer prometheus.Gatherer) error {
	name := filepath.Join(
		statsDir,
		time.Now().UTC().Format("20060102T150405")+".stats",
	)
	file, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	writer := bufio.NewWriter(file)
	for _, family := range families {
		if _, err := writer.WriteString(family.String() + "\n"); err != nil {
			return err
		}
	}
	return writer.Flush()
}
