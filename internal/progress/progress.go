package progress

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Indicator renders a progress bar for a long-running scan.
type Indicator struct {
	w          io.Writer
	enabled    bool
	message    string
	total      int
	current    int
	startTime  time.Time
	lastUpdate time.Time
}

// NewIndicator creates a new progress indicator writing to w
func NewIndicator(w io.Writer, message string, total int, enabled bool) *Indicator {
	return &Indicator{
		w:         w,
		enabled:   enabled && w != nil,
		message:   message,
		total:     total,
		startTime: time.Now(),
	}
}

// Start begins the progress indication
func (p *Indicator) Start() {
	if !p.enabled {
		return
	}

	p.startTime = time.Now()
	p.lastUpdate = time.Time{}
	fmt.Fprintf(p.w, "%s...\n", p.message)
}

// SetTotal changes the denominator, e.g. once the report size is known.
func (p *Indicator) SetTotal(total int) {
	p.total = total
}

// Update shows the current position
func (p *Indicator) Update(current int) {
	if !p.enabled {
		return
	}

	p.current = current
	now := time.Now()

	// Only update display every 100ms to avoid flickering
	if now.Sub(p.lastUpdate) < 100*time.Millisecond && current < p.total {
		return
	}
	p.lastUpdate = now

	elapsed := now.Sub(p.startTime)

	if p.total > 0 {
		percentage := float64(current) / float64(p.total) * 100
		if percentage > 100 {
			percentage = 100
		}
		bar := p.createProgressBar(percentage)

		var eta string
		if current > 0 && current < p.total {
			rate := float64(current) / elapsed.Seconds()
			remaining := float64(p.total-current) / rate
			eta = fmt.Sprintf(" ETA: %s", formatDuration(time.Duration(remaining)*time.Second))
		}

		fmt.Fprintf(p.w, "\r%s [%s] %s (%.1f%%)%s",
			p.message, bar, StatusText(current, p.total), percentage, eta)
	} else {
		spinner := p.getSpinner(elapsed)
		fmt.Fprintf(p.w, "\r%s %s (%d 個処理済み)", p.message, spinner, current)
	}
}

// Note prints a line without disturbing the bar position.
func (p *Indicator) Note(text string) {
	if !p.enabled {
		return
	}
	fmt.Fprintf(p.w, "\r%s\n", text)
	p.lastUpdate = time.Time{}
}

// Finish completes the progress indication
func (p *Indicator) Finish() {
	if !p.enabled {
		return
	}

	elapsed := time.Since(p.startTime)
	fmt.Fprintf(p.w, "\r%s ✓ %s (%s)\n", p.message, StatusText(p.current, p.total), formatDuration(elapsed))
}

// FinishWithError completes the progress indication with an error
func (p *Indicator) FinishWithError(err error) {
	if !p.enabled {
		return
	}

	elapsed := time.Since(p.startTime)
	fmt.Fprintf(p.w, "\r%s ✗ Failed after %s: %v\n",
		p.message, formatDuration(elapsed), err)
}

// StatusText is the "N 個中 M 個処理済み" status line.
func StatusText(current, total int) string {
	return fmt.Sprintf("%d 個中 %d 個処理済み", total, current)
}

// createProgressBar creates a visual progress bar
func (p *Indicator) createProgressBar(percentage float64) string {
	const width = 30
	filled := int(percentage / 100.0 * width)

	var bar strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && percentage < 100 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return bar.String()
}

// getSpinner returns a spinning character based on elapsed time
func (p *Indicator) getSpinner(elapsed time.Duration) string {
	spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	index := int(elapsed.Milliseconds()/100) % len(spinners)
	return spinners[index]
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}
