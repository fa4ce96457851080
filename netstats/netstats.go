// Package netstats tracks downloaded bytes and estimates instantaneous and
// average network speed, grounded on the Java original's SizeUnit human-
// readable formatting and rolling-window speed estimate.
package netstats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SizeUnit names the unit a formatted byte count was rendered in.
type SizeUnit int

const (
	UnitBytes SizeUnit = iota
	UnitKB
	UnitMB
	UnitGB
	UnitTB
)

func (u SizeUnit) String() string {
	switch u {
	case UnitBytes:
		return "B"
	case UnitKB:
		return "KB"
	case UnitMB:
		return "MB"
	case UnitGB:
		return "GB"
	case UnitTB:
		return "TB"
	default:
		return "B"
	}
}

// HumanReadableSize picks the largest unit that keeps the value >= 1,
// mirroring SizeUnit.getHumanReadableSize.
func HumanReadableSize(bytes float64) (float64, SizeUnit) {
	units := []SizeUnit{UnitBytes, UnitKB, UnitMB, UnitGB, UnitTB}
	value := bytes
	unit := UnitBytes
	for _, u := range units {
		unit = u
		if value < 1024 || u == UnitTB {
			break
		}
		value /= 1024
	}
	return value, unit
}

// FormatSize renders a byte count as e.g. "4.2 MB".
func FormatSize(bytes float64) string {
	value, unit := HumanReadableSize(bytes)
	return fmt.Sprintf("%.1f %s", value, unit)
}

// Keeper tracks bytes downloaded, a rolling window for instantaneous speed,
// and the artifact count. The rolling window is reset on a ticker rather
// than on every read, so InstantSpeed stays stable across many reads within
// the same window.
type Keeper struct {
	bytesDownloaded atomic.Int64
	artifactCount   atomic.Int64

	windowMu    sync.Mutex
	bytesWindow int64
	windowStart time.Time
	startedAt   time.Time

	ticker   *time.Ticker
	closeCh  chan struct{}
	closeOnce sync.Once
}

// New starts a Keeper with the given rolling-window duration (the Java
// original's recent-window constant; the dashboard's config section does
// not expose this, so callers pick it).
func New(windowPeriod time.Duration) *Keeper {
	now := time.Now()
	k := &Keeper{
		windowStart: now,
		startedAt:   now,
		ticker:      time.NewTicker(windowPeriod),
		closeCh:     make(chan struct{}),
	}
	go k.resetLoop()
	return k
}

func (k *Keeper) resetLoop() {
	for {
		select {
		case <-k.ticker.C:
			k.windowMu.Lock()
			k.bytesWindow = 0
			k.windowStart = time.Now()
			k.windowMu.Unlock()
		case <-k.closeCh:
			return
		}
	}
}

// OnBytesReceived records a NetworkBytesReceived event.
func (k *Keeper) OnBytesReceived(n int64) {
	k.bytesDownloaded.Add(n)
	k.windowMu.Lock()
	k.bytesWindow += n
	k.windowMu.Unlock()
}

// OnArtifactReceived increments the artifact count.
func (k *Keeper) OnArtifactReceived() {
	k.artifactCount.Add(1)
}

// TotalBytes returns the lifetime byte count.
func (k *Keeper) TotalBytes() int64 {
	return k.bytesDownloaded.Load()
}

// ArtifactCount returns the lifetime artifact count.
func (k *Keeper) ArtifactCount() int64 {
	return k.artifactCount.Load()
}

// InstantSpeed returns bytes/sec over the current rolling window.
func (k *Keeper) InstantSpeed() float64 {
	k.windowMu.Lock()
	defer k.windowMu.Unlock()
	elapsed := time.Since(k.windowStart).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(k.bytesWindow) / elapsed
}

// AverageSpeed returns total bytes/sec since the keeper was constructed.
func (k *Keeper) AverageSpeed() float64 {
	elapsed := time.Since(k.startedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(k.bytesDownloaded.Load()) / elapsed
}

// StopScheduler stops the internal rolling-window ticker. Idempotent.
func (k *Keeper) StopScheduler() {
	k.closeOnce.Do(func() {
		k.ticker.Stop()
		close(k.closeCh)
	})
}
