package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNewIndicator(t *testing.T) {
	tests := []struct {
		name    string
		message string
		total   int
		enabled bool
		want    bool
	}{
		{"enabled indicator", "Processing", 100, true, true},
		{"disabled indicator", "Processing", 100, false, false},
		{"indeterminate progress", "Loading", 0, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indicator := NewIndicator(&bytes.Buffer{}, tt.message, tt.total, tt.enabled)

			if indicator.message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, indicator.message)
			}
			if indicator.total != tt.total {
				t.Errorf("expected total %d, got %d", tt.total, indicator.total)
			}
			if indicator.enabled != tt.want {
				t.Errorf("expected enabled %v, got %v", tt.want, indicator.enabled)
			}
		})
	}
}

func TestNilWriterDisables(t *testing.T) {
	indicator := NewIndicator(nil, "x", 10, true)
	if indicator.enabled {
		t.Error("indicator without writer must be disabled")
	}
	indicator.Start()
	indicator.Update(5)
	indicator.Note("hello")
	indicator.Finish()
}

func TestProgressBar(t *testing.T) {
	indicator := NewIndicator(&bytes.Buffer{}, "Test", 100, true)

	tests := []struct {
		percentage float64
		expected   string
	}{
		{0.0, "▓░░░░░░░░░░░░░░░░░░░░░░░░░░░░░"},
		{50.0, "███████████████▓░░░░░░░░░░░░░░"},
		{100.0, "██████████████████████████████"},
	}

	for _, tt := range tests {
		result := indicator.createProgressBar(tt.percentage)
		if result != tt.expected {
			t.Errorf("progress bar for %.1f%%: expected %q, got %q", tt.percentage, tt.expected, result)
		}
	}
}

func TestSpinner(t *testing.T) {
	indicator := NewIndicator(&bytes.Buffer{}, "Test", 0, true)

	s1 := indicator.getSpinner(0)
	s2 := indicator.getSpinner(100 * time.Millisecond)
	s3 := indicator.getSpinner(200 * time.Millisecond)

	if s1 == s2 && s2 == s3 {
		t.Errorf("spinner should change over time")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{50 * time.Millisecond, "50ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1.5m"},
		{3600 * time.Second, "1.0h"},
	}

	for _, tt := range tests {
		result := formatDuration(tt.duration)
		if result != tt.expected {
			t.Errorf("formatDuration(%v): expected %q, got %q", tt.duration, tt.expected, result)
		}
	}
}

func TestStatusText(t *testing.T) {
	if got := StatusText(1234, 350000); got != "350000 個中 1234 個処理済み" {
		t.Errorf("StatusText = %q", got)
	}
}

func TestIndicatorOutput(t *testing.T) {
	var buf bytes.Buffer
	indicator := NewIndicator(&buf, "Scan", 10, true)
	indicator.Start()
	indicator.Update(10)
	indicator.Finish()

	out := buf.String()
	for _, want := range []string{"Scan...", "10 個中 10 個処理済み", "(100.0%)", "✓"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestIndicatorClampsOvershoot(t *testing.T) {
	var buf bytes.Buffer
	indicator := NewIndicator(&buf, "Scan", 10, true)
	indicator.Start()
	indicator.Update(12)
	if !strings.Contains(buf.String(), "(100.0%)") {
		t.Errorf("output %q should clamp to 100%%", buf.String())
	}
}

func TestProgressBarVisualConsistency(t *testing.T) {
	indicator := NewIndicator(&bytes.Buffer{}, "Test", 100, true)

	for _, percentage := range []float64{0, 0.1, 33.33, 66.67, 99.9, 100} {
		bar := indicator.createProgressBar(percentage)

		const expectedLength = 30
		if len([]rune(bar)) != expectedLength {
			t.Errorf("progress bar at %.1f%% has wrong length: expected %d chars, got %d",
				percentage, expectedLength, len([]rune(bar)))
		}
		for _, r := range bar {
			if r != '█' && r != '▓' && r != '░' {
				t.Errorf("progress bar contains invalid character: %q", r)
			}
		}
	}
}

func BenchmarkProgressBar(b *testing.B) {
	indicator := NewIndicator(&bytes.Buffer{}, "Benchmark", 100, true)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = indicator.createProgressBar(float64(i % 101))
	}
}
