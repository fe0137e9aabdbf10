package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide peer traffic counter.
var Stats = &stats{}

type stats struct {
	FramesSent atomic.Int64 // cumulative frames queued to the peer
	FramesRecv atomic.Int64 // cumulative complete frames parsed from the peer
	BytesSent  atomic.Int64 // cumulative bytes written to the peer socket
	BytesRecv  atomic.Int64 // cumulative bytes read from the peer socket
	Violations atomic.Int64 // cumulative frames discarded as protocol violations
}

func (s *stats) AddFramesSent(n int) { s.FramesSent.Add(int64(n)) }
func (s *stats) AddFramesRecv(n int) { s.FramesRecv.Add(int64(n)) }
func (s *stats) AddSent(n int)       { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int)       { s.BytesRecv.Add(int64(n)) }
func (s *stats) AddViolation()       { s.Violations.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// reportInterval is how often StartStatsReporter samples the counters.
const reportInterval = 10 * time.Second

// StartStatsReporter launches a goroutine that logs peer traffic every
// reportInterval while there is any. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reportInterval)
		defer ticker.Stop()

		var prevSent, prevRecv, prevFramesOut, prevFramesIn, prevBad int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				framesOut := Stats.FramesSent.Load()
				framesIn := Stats.FramesRecv.Load()
				bad := Stats.Violations.Load()

				secs := reportInterval.Seconds()
				outS := float64(sent-prevSent) / secs
				inS := float64(recv-prevRecv) / secs

				if framesOut != prevFramesOut || framesIn != prevFramesIn {
					pterm.DefaultLogger.Info(formatStats(inS, outS, framesIn-prevFramesIn, framesOut-prevFramesOut, bad-prevBad))
				}

				prevSent = sent
				prevRecv = recv
				prevFramesOut = framesOut
				prevFramesIn = framesIn
				prevBad = bad

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a fixed-width (8 chars) string,
// e.g. "99.0   B", " 1.5 KiB", " 0.1 MiB".
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < len(byteUnits)-1 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats renders one reporter line.
func formatStats(inS, outS float64, framesIn, framesOut, violations int64) string {
	line := fmt.Sprintf("In: %s/s | Out: %s/s | Frames: %d↓ %d↑",
		formatBytes(inS),
		formatBytes(outS),
		framesIn,
		framesOut,
	)
	if violations > 0 {
		line += fmt.Sprintf(" | Dropped: %d", violations)
	}
	return line
}
