package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Options configures the progress reporter.
type Options struct {
	// TotalTasks is the number of tasks expected.
	TotalTasks int

	// Concurrency is the in-flight limit (for display).
	Concurrency int

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// Action and Done label the start and final lines, Unit names the
	// tasks. Defaults: "Fetching", "Fetched", "assets".
	Action string
	Done   string
	Unit   string
}

// Reporter outputs human-readable progress information.
type Reporter struct {
	opts Options

	mu             sync.Mutex
	completedBytes atomic.Int64
	completedTasks atomic.Int32
	failedTasks    atomic.Int32
	inFlight       atomic.Int32
	startTime      time.Time
	lastUpdate     time.Time
	lastBytes      int64
	stopCh         chan struct{}
	doneCh         chan struct{}
	started        bool
	stopped        bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}
	if opts.Action == "" {
		opts.Action = "Fetching"
	}
	if opts.Done == "" {
		opts.Done = "Fetched"
	}
	if opts.Unit == "" {
		opts.Unit = "assets"
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[stitch] %s %d %s | Concurrency: %d\n",
		r.opts.Action,
		r.opts.TotalTasks,
		r.opts.Unit,
		r.opts.Concurrency,
	)

	go r.updateLoop()
}

// Stop stops the reporter and prints the final status. It blocks until the
// final status has been written.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped || !r.started {
		r.stopped = true
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

// TaskStarted marks a task as in flight.
func (r *Reporter) TaskStarted(string) {
	r.inFlight.Add(1)
}

// TaskCompleted marks a task as completed with the given size.
func (r *Reporter) TaskCompleted(_ string, size int64) {
	r.completedBytes.Add(size)
	r.completedTasks.Add(1)
	r.inFlight.Add(-1)
}

// TaskFailed marks a task as failed (removes it from in-flight).
func (r *Reporter) TaskFailed(string, error) {
	r.failedTasks.Add(1)
	r.inFlight.Add(-1)
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

// printProgress outputs the current progress.
func (r *Reporter) printProgress() {
	now := time.Now()
	completed := r.completedBytes.Load()
	completedTasks := int(r.completedTasks.Load())
	failedTasks := int(r.failedTasks.Load())
	inFlight := int(r.inFlight.Load())

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(completed-r.lastBytes) / elapsed

	r.lastUpdate = now
	r.lastBytes = completed

	var percent float64
	if r.opts.TotalTasks > 0 {
		percent = float64(completedTasks+failedTasks) / float64(r.opts.TotalTasks) * 100
	}

	pending := r.opts.TotalTasks - completedTasks - failedTasks - inFlight
	if pending < 0 {
		pending = 0
	}

	fmt.Fprintf(r.opts.Output, "[stitch] Progress: %.1f%% | %d / %d %s | %s | Speed: %s/s\n",
		percent,
		completedTasks,
		r.opts.TotalTasks,
		r.opts.Unit,
		FormatBytes(completed),
		FormatBytes(int64(speed)),
	)
	fmt.Fprintf(r.opts.Output, "[stitch] Tasks: %d completed | %d in-flight | %d failed | %d pending\n",
		completedTasks,
		inFlight,
		failedTasks,
		pending,
	)
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	completed := r.completedBytes.Load()
	duration := time.Since(r.startTime)
	avgSpeed := float64(completed) / max(duration.Seconds(), 0.001)

	fmt.Fprintf(r.opts.Output, "[stitch] %s %d / %d %s | %d failed | %s\n",
		r.opts.Done,
		r.completedTasks.Load(),
		r.opts.TotalTasks,
		r.opts.Unit,
		r.failedTasks.Load(),
		FormatBytes(completed),
	)
	fmt.Fprintf(r.opts.Output, "[stitch] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration),
		FormatBytes(int64(avgSpeed)),
	)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes formats bytes using IEC units ("1.5 KiB").
func FormatBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}

// ParseBytes parses a human-readable byte string. Both IEC ("256MiB") and
// SI ("256MB") units are accepted.
func ParseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte string %q: %w", s, err)
	}
	return int64(n), nil
}
