package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/guarzo/janprice/internal/model"
)

// TestDataFactory provides methods for generating dynamic test data
type TestDataFactory struct {
	rand *rand.Rand
	seq  int
}

// NewTestDataFactory creates a new test data factory with a seeded random generator
func NewTestDataFactory(seed int64) *TestDataFactory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TestDataFactory{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// GenerateTestToken generates a random test token
func (f *TestDataFactory) GenerateTestToken() string {
	return fmt.Sprintf("test-token-%d", f.rand.Int63())
}

const asinAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateASIN generates a ten character ASIN starting with B0
func (f *TestDataFactory) GenerateASIN() model.Candidate {
	b := []byte("B0")
	for i := 0; i < 8; i++ {
		b = append(b, asinAlphabet[f.rand.Intn(len(asinAlphabet))])
	}
	return model.Candidate(b)
}

// GenerateASINs generates n ASINs
func (f *TestDataFactory) GenerateASINs(n int) []model.Candidate {
	out := make([]model.Candidate, n)
	for i := range out {
		out[i] = f.GenerateASIN()
	}
	return out
}

// GenerateJAN generates a 13 digit JAN with a valid check digit
func (f *TestDataFactory) GenerateJAN() string {
	digits := make([]int, 12)
	digits[0] = 4
	digits[1] = 9
	if f.rand.Intn(2) == 0 {
		digits[1] = 5
	}
	for i := 2; i < 12; i++ {
		digits[i] = f.rand.Intn(10)
	}
	return formatJAN(digits)
}

func formatJAN(digits []int) string {
	sum := 0
	for i, d := range digits {
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	check := (10 - sum%10) % 10

	s := make([]byte, 0, 13)
	for _, d := range digits {
		s = append(s, byte('0'+d))
	}
	return string(append(s, byte('0'+check)))
}

// ValidJAN reports whether s is a 13 digit JAN with a correct check digit
func ValidJAN(s string) bool {
	if len(s) != 13 {
		return false
	}
	digits := make([]int, 12)
	for i := 0; i < 12; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
		digits[i] = int(s[i] - '0')
	}
	return formatJAN(digits) == s
}

// GenerateTestPrice generates a random price in yen
func (f *TestDataFactory) GenerateTestPrice() int {
	return f.rand.Intn(9500) + 500
}

// GenerateRecord generates a ledger record with increasing sequence ids
func (f *TestDataFactory) GenerateRecord() model.ReconciliationRecord {
	f.seq++
	ref := f.GenerateTestPrice()
	site := f.rand.Intn(ref)
	rec, _ := model.Reconcile(f.seq, model.ResolvedProduct{
		StableCode:     f.GenerateJAN(),
		ReferencePrice: ref,
	}, model.CompetitorListing{
		URL:       fmt.Sprintf("https://shopping.bookoff.co.jp/used/%010d", f.rand.Int63n(1e10)),
		Stock:     model.StockStatus(f.rand.Intn(2)),
		SitePrice: site,
	}, model.DefaultFlagThreshold)
	return rec
}
