package frame

import (
	"strings"
	"sync"
	"time"

	"github.com/buildwatch/buildconsole/ansiterm"
	"github.com/buildwatch/buildconsole/common"
)

// DriverConfig wires a Driver to the streams it writes to and the composer
// it draws frames from.
type DriverConfig struct {
	Composer *Composer

	// Stdout and Stderr are watched for foreign writes; the dashboard
	// itself draws to Stderr only, via WriteFrame so its own output never
	// trips the dirty latch.
	Stdout *ansiterm.Writer
	Stderr *ansiterm.Writer

	// Interval is how often Start's background goroutine ticks. Defaults
	// to 100ms when zero.
	Interval time.Duration
}

// Driver runs the render scheduler: once per tick it drains deferred log
// lines (which scroll permanently into terminal history), clears the
// previously drawn frame, and draws the new one in its place — all as one
// combined write to Stderr. A foreign write observed on either stream
// permanently disables further redraws, per spec.md §7's dirty-stream
// contract: once dirty, the driver no longer knows what is on screen and
// must stop touching it.
type Driver struct {
	cfg DriverConfig

	mu           sync.Mutex
	lastNumLines int
	dirty        bool

	ticker    *time.Ticker
	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDriver returns a Driver wired to cfg. Interval defaults to 100ms.
func NewDriver(cfg DriverConfig) *Driver {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	return &Driver{cfg: cfg, stopCh: make(chan struct{})}
}

// Start launches the background render loop. Safe to call once; a second
// call is a no-op.
func (d *Driver) Start() {
	d.mu.Lock()
	if d.ticker != nil {
		d.mu.Unlock()
		return
	}
	d.ticker = time.NewTicker(d.cfg.Interval)
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-d.ticker.C:
				d.tick()
			case <-d.stopCh:
				return
			}
		}
	}()
}

// RenderNow performs one tick synchronously, outside the scheduler's own
// cadence — used by dispatch's ForceRender hook on TestRunFinished, and by
// Close for the final frame.
func (d *Driver) RenderNow() {
	d.tick()
}

func (d *Driver) tick() {
	d.mu.Lock()
	if d.dirty {
		d.mu.Unlock()
		return
	}

	if d.cfg.Stdout.IsDirty() || d.cfg.Stderr.IsDirty() {
		d.dirty = true
		d.stopSchedulerLocked()
		d.mu.Unlock()
		return
	}

	now := common.NowMillis()
	logLines := d.cfg.Composer.Logs().Drain()
	frameLines := d.cfg.Composer.Compose(now)

	var b strings.Builder
	b.WriteString(ansiterm.ClearLines(d.lastNumLines))
	for _, l := range logLines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if len(frameLines) > 0 {
		// The frame block is wrapped in AsNoWrap so a line long enough to
		// wrap to two terminal rows still costs exactly one against
		// lastNumLines — ClearLines only ever erases one row per line drawn.
		b.WriteString(ansiterm.AsNoWrap(strings.Join(frameLines, "\n")))
		b.WriteByte('\n')
	}

	d.lastNumLines = len(frameLines)
	d.mu.Unlock()

	d.cfg.Stderr.WriteFrame(b.String())
}

// stopSchedulerLocked stops the ticker goroutine. Callers must hold d.mu.
func (d *Driver) stopSchedulerLocked() {
	if d.ticker != nil {
		d.ticker.Stop()
	}
	select {
	case <-d.stopCh:
		// already closed
	default:
		close(d.stopCh)
	}
}

// Close stops the render scheduler and performs one final, synchronous
// render so the last frame reflects the engine's state at shutdown — unless
// a dirty stream has already stopped rendering, in which case nothing more
// is written. Idempotent.
func (d *Driver) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		wasDirty := d.dirty
		d.stopSchedulerLocked()
		d.mu.Unlock()
		d.wg.Wait()
		if !wasDirty {
			d.RenderNow()
		}
	})
}
