// Package progress carries run events from the worker to the console and
// renders them.
package progress

import (
	"io"
	"sync"

	"github.com/guarzo/janprice/internal/model"
)

const (
	statusStarting = "ダウンロード中..."
	statusReading  = "ファイルを読んでいます..."
	statusStopped  = "停止しました"
)

// Display consumes events and owns its own projection of the run: status
// line, latest error and the records surfaced so far.
type Display struct {
	ind *Indicator

	mu        sync.Mutex
	running   bool
	status    string
	lastError string
	percent   float64
	position  int
	records   []model.ReconciliationRecord
}

// NewDisplay renders to w. A nil w or quiet keeps only the projection.
func NewDisplay(w io.Writer, total int, quiet bool) *Display {
	return &Display{ind: NewIndicator(w, "Amazon - BookOff", total, !quiet)}
}

// Run drains events until the channel is closed.
func (d *Display) Run(events <-chan Event) {
	for e := range events {
		d.Handle(e)
	}
}

// Handle applies one event.
func (d *Display) Handle(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch e.Kind {
	case KindStart:
		d.running = true
		d.status = statusStarting
		d.lastError = ""
		d.percent = 0
		d.position = 0
		d.records = nil
		d.ind.Start()
	case KindReading:
		d.status = statusReading
		d.percent = 0
		d.ind.Note(statusReading)
	case KindError:
		d.status = e.Message
		d.lastError = e.Message
		d.ind.Note("⚠ " + e.Message)
	case KindPercent:
		d.percent = e.Percent
		d.position = e.Position
		if e.Total > 0 {
			d.ind.SetTotal(e.Total)
			d.status = StatusText(e.Position, e.Total)
		}
		d.ind.Update(e.Position)
	case KindRecord:
		if e.Record != nil {
			d.records = append(d.records, *e.Record)
		}
	case KindStop:
		if d.running {
			d.ind.Finish()
		}
		d.running = false
		if d.lastError == "" || d.status != d.lastError {
			d.status = statusStopped
		}
	}
}

func (d *Display) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Status is the text a status label would show.
func (d *Display) Status() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Display) LastError() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastError
}

func (d *Display) Percent() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.percent
}

// Records returns a copy of the records surfaced so far.
func (d *Display) Records() []model.ReconciliationRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.ReconciliationRecord, len(d.records))
	copy(out, d.records)
	return out
}
