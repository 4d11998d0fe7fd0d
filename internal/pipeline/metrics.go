package pipeline

import (
	"time"

	"go.uber.org/zap"
)

// Metrics tracks how far a run got.
type Metrics struct {
	StartTime  time.Time
	EndTime    time.Time
	Batches    int
	Candidates int
	Records    int
	Errors     int
	Throughput float64 // candidates per second
}

func (m *Metrics) finish(now time.Time) {
	m.EndTime = now
	if d := m.EndTime.Sub(m.StartTime).Seconds(); d > 0 {
		m.Throughput = float64(m.Candidates) / d
	}
}

func (m Metrics) fields() []zap.Field {
	return []zap.Field{
		zap.Int("batches", m.Batches),
		zap.Int("candidates", m.Candidates),
		zap.Int("records", m.Records),
		zap.Int("errors", m.Errors),
		zap.Duration("elapsed", m.EndTime.Sub(m.StartTime)),
		zap.Float64("throughput", m.Throughput),
	}
}
