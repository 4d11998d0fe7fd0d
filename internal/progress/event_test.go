package progress

import (
	"bytes"
	"sync"
	"testing"

	"github.com/guarzo/janprice/internal/model"
)

func TestEventWireForm(t *testing.T) {
	rec := model.ReconciliationRecord{SequenceID: 9, StableCode: "4988067000125"}
	tests := []struct {
		event Event
		want  string
	}{
		{Start("r"), "start"},
		{Stop("r"), "stop"},
		{Reading("r"), "reading"},
		{Error("r", "アクセストークンを取得できませんでした。"), "アクセストークンを取得できませんでした。"},
		{Percent("r", 35000, 350000), "10"},
		{Percent("r", 1, 4), "25"},
		{Percent("r", 500, 100), "100"},
		{Percent("r", 5, 0), "0"},
		{Record("r", rec), "record 9 4988067000125"},
	}
	for _, tt := range tests {
		if got := tt.event.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", tt.event.Kind, got, tt.want)
		}
	}
}

func TestParseWire(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
	}{
		{"start", KindStart},
		{"stop", KindStop},
		{"reading", KindReading},
		{"12.5", KindPercent},
		{"100", KindPercent},
		{"ファイルをダウロドしていた途中にエラーが発生しました。", KindError},
		{"HTTP 503", KindError},
		{"record 12 4988067000125", KindRecord},
		{"record", KindRecord},
		{"record not-a-number 4988067000125", KindError},
	}
	for _, tt := range tests {
		if got := ParseWire(tt.in); got.Kind != tt.kind {
			t.Errorf("ParseWire(%q) = %v, want %v", tt.in, got.Kind, tt.kind)
		}
	}

	// round trip through the wire form keeps the classification
	rec := model.ReconciliationRecord{SequenceID: 12, StableCode: "4988067000125"}
	for _, e := range []Event{Start(""), Stop(""), Reading(""), Error("", "boom"), Percent("", 3, 7), Record("", rec)} {
		if got := ParseWire(e.String()); got.Kind != e.Kind {
			t.Errorf("round trip of %v gave %v", e.Kind, got.Kind)
		}
	}

	got := ParseWire(Record("", rec).String())
	if got.Record == nil || got.Record.SequenceID != 12 || got.Record.StableCode != "4988067000125" {
		t.Errorf("record round trip = %+v", got.Record)
	}
}

func TestPercentMonotonic(t *testing.T) {
	prev := -1.0
	for pos := 0; pos <= 1000; pos += 7 {
		p := Percent("", pos, 1000).Percent
		if p < prev {
			t.Fatalf("percent decreased at %d: %f < %f", pos, p, prev)
		}
		prev = p
	}
}

func TestPercentWithSegment(t *testing.T) {
	e := Percent("", 225000, 350000).WithSegment("music", 150000, 300000)
	if e.Segment != "music" || e.SegmentPercent != 50 {
		t.Errorf("segment = %q %v", e.Segment, e.SegmentPercent)
	}
	if e.String() != Percent("", 225000, 350000).String() {
		t.Error("segment data must not change the wire form")
	}

	first := Percent("", 150001, 350000).WithSegment("music", 150000, 300000)
	if first.SegmentPercent >= 1 {
		t.Errorf("segment percent should restart near 0, got %v", first.SegmentPercent)
	}
}

func TestChannel(t *testing.T) {
	ch := NewChannel(2)

	var got []Event
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range ch.Events() {
			got = append(got, e)
		}
	}()

	for i := 0; i < 50; i++ {
		ch.Publish(Percent("", i, 50))
	}
	ch.Close()
	ch.Close()
	ch.Publish(Stop("")) // after close: dropped, no panic
	wg.Wait()

	if len(got) != 50 {
		t.Fatalf("received %d events, want 50", len(got))
	}
	for i, e := range got {
		if e.Position != i {
			t.Fatalf("event %d has position %d", i, e.Position)
		}
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var p Publisher = &r
	p.Publish(Start("x"))
	p.Publish(Stop("x"))
	Discard{}.Publish(Start("x"))

	events := r.Events()
	if len(events) != 2 || events[0].Kind != KindStart || events[1].Kind != KindStop {
		t.Errorf("events = %v", events)
	}
}

func TestDisplayProjection(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf, 100, false)

	rec := model.ReconciliationRecord{SequenceID: 2, StableCode: "4988067000125", SitePrice: 500, ReferencePrice: 1000, Flag: model.FlagFlagged}

	ch := NewChannel(0)
	done := make(chan struct{})
	go func() {
		d.Run(ch.Events())
		close(done)
	}()

	ch.Publish(Start("run"))
	ch.Publish(Percent("run", 2, 100))
	ch.Publish(Record("run", rec))
	ch.Publish(Percent("run", 3, 100))
	ch.Close()
	<-done

	if !d.Running() {
		t.Error("display should still be running without a stop event")
	}
	if got := d.Status(); got != "100 個中 3 個処理済み" {
		t.Errorf("Status = %q", got)
	}
	if got := d.Percent(); got != 3 {
		t.Errorf("Percent = %v", got)
	}
	records := d.Records()
	if len(records) != 1 || records[0] != rec {
		t.Errorf("Records = %+v", records)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Amazon - BookOff...")) {
		t.Errorf("output %q missing start line", buf.String())
	}
}

func TestDisplayErrorAndStop(t *testing.T) {
	d := NewDisplay(nil, 0, true)

	d.Handle(Start("r"))
	d.Handle(Reading("r"))
	if d.Status() != statusReading {
		t.Errorf("Status = %q", d.Status())
	}

	d.Handle(Error("r", "カタログ情報を取得できませんでした。"))
	if d.Status() != "カタログ情報を取得できませんでした。" || d.LastError() != d.Status() {
		t.Errorf("Status = %q, LastError = %q", d.Status(), d.LastError())
	}

	// the run keeps advancing after a non-fatal error
	d.Handle(Percent("r", 10, 20))
	if d.Status() != "20 個中 10 個処理済み" {
		t.Errorf("Status = %q", d.Status())
	}

	d.Handle(Stop("r"))
	if d.Running() {
		t.Error("display should not be running after stop")
	}
	if d.Status() != statusStopped {
		t.Errorf("Status = %q", d.Status())
	}
}

func TestDisplayKeepsFatalMessageAfterStop(t *testing.T) {
	d := NewDisplay(nil, 0, true)
	d.Handle(Start("r"))
	d.Handle(Error("r", "無効なファイルです"))
	d.Handle(Stop("r"))
	if d.Status() != "無効なファイルです" {
		t.Errorf("Status = %q", d.Status())
	}
}

func TestDisplayStartClearsPreviousRun(t *testing.T) {
	d := NewDisplay(nil, 0, true)
	d.Handle(Start("a"))
	d.Handle(Record("a", model.ReconciliationRecord{SequenceID: 1}))
	d.Handle(Stop("a"))
	d.Handle(Start("b"))
	if len(d.Records()) != 0 {
		t.Error("records should be cleared on start")
	}
}
