package batch

import (
	"math/rand"
	"testing"

	"github.com/guarzo/janprice/internal/model"
	"github.com/guarzo/janprice/internal/testutil"
)

func TestPushAndDrain(t *testing.T) {
	b := New(DefaultSize)
	f := testutil.NewTestDataFactory(7)
	in := f.GenerateASINs(23)

	first := b.PushAndDrain(in)
	if len(first) != 10 || b.Pending() != 13 {
		t.Fatalf("first batch %d, pending %d", len(first), b.Pending())
	}
	second := b.PushAndDrain(nil)
	if len(second) != 10 || b.Pending() != 3 {
		t.Fatalf("second batch %d, pending %d", len(second), b.Pending())
	}
	third := b.PushAndDrain(nil)
	if len(third) != 3 || b.Pending() != 0 {
		t.Fatalf("third batch %d, pending %d", len(third), b.Pending())
	}
	if got := b.PushAndDrain(nil); len(got) != 0 {
		t.Errorf("empty buffer returned %v", got)
	}

	all := append(append(first, second...), third...)
	for i := range in {
		if all[i] != in[i] {
			t.Fatalf("order broken at %d: %s != %s", i, all[i], in[i])
		}
	}
}

func TestPushAndDrainSmallPushes(t *testing.T) {
	b := New(DefaultSize)
	got := b.PushAndDrain([]model.Candidate{"A", "B"})
	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("got %v", got)
	}
	got = b.PushAndDrain([]model.Candidate{"C"})
	if len(got) != 1 || got[0] != "C" {
		t.Errorf("undersized batch must not repeat earlier candidates: %v", got)
	}
}

func TestPushAndDrainProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	f := testutil.NewTestDataFactory(42)
	b := New(DefaultSize)

	var pushed, drained []model.Candidate
	for round := 0; round < 200; round++ {
		in := f.GenerateASINs(rng.Intn(25))
		pushed = append(pushed, in...)

		out := b.PushAndDrain(in)
		if len(out) > DefaultSize {
			t.Fatalf("round %d: batch of %d", round, len(out))
		}
		drained = append(drained, out...)
	}
	for b.Pending() > 0 {
		drained = append(drained, b.PushAndDrain(nil)...)
	}

	if len(drained) != len(pushed) {
		t.Fatalf("drained %d, pushed %d", len(drained), len(pushed))
	}
	for i := range pushed {
		if drained[i] != pushed[i] {
			t.Fatalf("FIFO violated at %d", i)
		}
	}
}

func TestNewDefaultsSize(t *testing.T) {
	b := New(0)
	out := b.PushAndDrain(testutil.NewTestDataFactory(1).GenerateASINs(15))
	if len(out) != DefaultSize {
		t.Errorf("len = %d, want %d", len(out), DefaultSize)
	}
}
