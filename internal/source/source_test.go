package source

import (
	"context"
	"errors"
	"testing"

	"github.com/guarzo/janprice/internal/faults"
	"github.com/guarzo/janprice/internal/ingest"
	"github.com/guarzo/janprice/internal/model"
	"github.com/guarzo/janprice/internal/testutil"
)

type pageCall struct{ position, page int }

type fakeFetcher struct {
	pages [][]model.Candidate
	calls []pageCall
}

func (f *fakeFetcher) FetchPageCandidates(_ context.Context, position, page int) []model.Candidate {
	f.calls = append(f.calls, pageCall{position, page})
	if len(f.calls) > len(f.pages) {
		return nil
	}
	return f.pages[len(f.calls)-1]
}

type fakeIngester struct {
	ex  *ingest.Extraction
	err error
}

func (f fakeIngester) Run(context.Context) (*ingest.Extraction, error) { return f.ex, f.err }

func TestCrawlerSource(t *testing.T) {
	gen := testutil.NewTestDataFactory(11)
	page1 := gen.GenerateASINs(16)
	page2 := gen.GenerateASINs(3)
	f := &fakeFetcher{pages: [][]model.Candidate{page1, page2}}
	s := NewCrawlerSource(f, 10)
	ctx := context.Background()

	b1, err := s.NextBatch(ctx, 1, 1)
	if err != nil || len(b1) != 10 {
		t.Fatalf("batch 1 = %d, %v", len(b1), err)
	}
	b2, _ := s.NextBatch(ctx, 12, 2)
	if len(b2) != 9 {
		t.Fatalf("batch 2 = %d, want 9 (6 carried + 3 new)", len(b2))
	}
	if b2[0] != page1[10] || b2[8] != page2[2] {
		t.Errorf("batch 2 order broken: %v", b2)
	}
	b3, err := s.NextBatch(ctx, 22, 3)
	if err != nil || len(b3) != 0 {
		t.Errorf("batch 3 = %v, %v; want empty", b3, err)
	}

	want := []pageCall{{1, 1}, {12, 2}, {22, 3}}
	for i, c := range want {
		if f.calls[i] != c {
			t.Errorf("call %d = %+v, want %+v", i, f.calls[i], c)
		}
	}
}

func TestReportSource(t *testing.T) {
	cands := testutil.NewTestDataFactory(5).GenerateASINs(45)
	s := NewReportSource(fakeIngester{ex: &ingest.Extraction{Candidates: cands, Total: len(cands)}}, 20, nil)
	ctx := context.Background()

	budget, err := s.Prepare(ctx)
	if err != nil || budget != 45 {
		t.Fatalf("Prepare = %d, %v", budget, err)
	}

	var got []model.Candidate
	sizes := []int{}
	for {
		b, err := s.NextBatch(ctx, 0, 0)
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		sizes = append(sizes, len(b))
		got = append(got, b...)
	}

	if len(sizes) != 3 || sizes[0] != 20 || sizes[1] != 20 || sizes[2] != 5 {
		t.Errorf("window sizes = %v", sizes)
	}
	for i := range cands {
		if got[i] != cands[i] {
			t.Fatalf("candidate %d out of order", i)
		}
	}
}

func TestReportSourcePrepareFailure(t *testing.T) {
	want := faults.WithMessage(faults.Report, "download", "ファイルをダウロドしていた途中にエラーが発生しました。", errors.New("EOF"))
	s := NewReportSource(fakeIngester{err: want}, 20, nil)

	_, err := s.Prepare(context.Background())
	if !errors.Is(err, want) || !faults.IsFatal(err) {
		t.Errorf("err = %v", err)
	}
	if _, err := s.NextBatch(context.Background(), 0, 0); !errors.Is(err, ErrExhausted) {
		t.Errorf("unprepared source should be exhausted, got %v", err)
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic([]model.Candidate{"A", "B", "C"}, 2)
	b, _ := s.NextBatch(context.Background(), 0, 0)
	if len(b) != 2 {
		t.Errorf("len = %d", len(b))
	}
	b, _ = s.NextBatch(context.Background(), 0, 0)
	if len(b) != 1 || b[0] != "C" {
		t.Errorf("b = %v", b)
	}
	if _, err := s.NextBatch(context.Background(), 0, 0); !errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v", err)
	}
}
