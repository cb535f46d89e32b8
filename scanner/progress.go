package scanner

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/OiAnthony/image-deduplicate/logging"

	"github.com/schollz/progressbar/v3"
)

// ProgressTracker draws a progress bar and counts outcomes
type ProgressTracker struct {
	out         io.Writer
	description string

	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	processed int
	cached    int
	errors    int
	startTime time.Time
}

// NewProgressTracker creates a tracker that renders to out
func NewProgressTracker(out io.Writer, description string) *ProgressTracker {
	return &ProgressTracker{out: out, description: description}
}

func (p *ProgressTracker) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.processed, p.cached, p.errors = 0, 0, 0
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(p.description),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(p.out) }),
	)
}

func (p *ProgressTracker) Increment(result ProcessImageResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
	switch {
	case !result.Success():
		p.errors++
		p.bar.Describe(fmt.Sprintf("%s (errors: %d)", p.description, p.errors))
	case result.Record.FromCache:
		p.cached++
	}
	if err := p.bar.Add(1); err != nil {
		logging.DebugLog("progress bar: %v", err)
	}
}

func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Finish()
	}
	logging.DebugLog("Scan completed in %v. Processed: %d, Cached: %d, Errors: %d",
		time.Since(p.startTime), p.processed, p.cached, p.errors)
}

// Counts returns processed, cached and failed totals
func (p *ProgressTracker) Counts() (processed, cached, errors int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed, p.cached, p.errors
}
