// Package debug logs process and pipeline statistics at a fixed interval.
// Started only when config.Debug is true.
package debug

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"

	"github.com/amefumi/abodial/domain/capture"
)

// StatsFunc returns a snapshot of frame source counters.
type StatsFunc func() capture.Stats

// StartRuntimeLogger launches a ticker that logs goroutine count, heap and
// stack usage, working set where available, and capture counters when stats
// is non-nil. It stops when ctx is done.
func StartRuntimeLogger(ctx context.Context, interval time.Duration, logger *slog.Logger, stats StatsFunc) {
	if logger == nil {
		return
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		var rssErrLogged bool
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			attrs := sample()
			if rss, err := workingSet(); err == nil {
				attrs = append(attrs, slog.Uint64("rss", rss))
			} else if !rssErrLogged {
				logger.Warn("working set query failed", "error", err)
				rssErrLogged = true
			}
			if stats != nil {
				s := stats()
				attrs = append(attrs,
					slog.Uint64("captures", s.Captures),
					slog.Uint64("cache_hits", s.CacheHits),
					slog.Uint64("capture_failures", s.Failures),
					slog.Duration("avg_capture", s.AvgCapture),
					slog.Duration("frame_age", s.FrameAge),
					slog.Bool("window_known", s.WindowKnown),
				)
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "runtime", attrs...)
		}
	}()
}

const goroutineSample = "/sched/goroutines:goroutines"

func sample() []slog.Attr {
	samples := []metrics.Sample{{Name: goroutineSample}}
	metrics.Read(samples)
	var goroutines uint64
	if samples[0].Value.Kind() == metrics.KindUint64 {
		goroutines = samples[0].Value.Uint64()
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return []slog.Attr{
		slog.Uint64("goroutines", goroutines),
		slog.Uint64("heap_alloc", ms.HeapAlloc),
		slog.Uint64("heap_inuse", ms.HeapInuse),
		slog.Uint64("stack_inuse", ms.StackInuse),
		slog.Uint64("num_gc", uint64(ms.NumGC)),
	}
}
