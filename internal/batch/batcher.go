// Package batch groups candidates into catalog-sized batches.
package batch

import "github.com/guarzo/janprice/internal/model"

// DefaultSize is the batch size used when crawling search pages.
const DefaultSize = 10

// Batcher is a FIFO remainder buffer. It is not safe for concurrent use.
type Batcher struct {
	size      int
	remainder []model.Candidate
}

func New(size int) *Batcher {
	if size <= 0 {
		size = DefaultSize
	}
	return &Batcher{size: size}
}

// PushAndDrain appends candidates to the remainder and returns the next
// batch: the first size candidates when that many are buffered, otherwise
// everything buffered. Returned candidates are removed from the buffer.
func (b *Batcher) PushAndDrain(candidates []model.Candidate) []model.Candidate {
	b.remainder = append(b.remainder, candidates...)

	n := len(b.remainder)
	if n > b.size {
		n = b.size
	}
	out := make([]model.Candidate, n)
	copy(out, b.remainder[:n])

	rest := copy(b.remainder, b.remainder[n:])
	b.remainder = b.remainder[:rest]
	return out
}

// Pending returns how many candidates are buffered.
func (b *Batcher) Pending() int {
	return len(b.remainder)
}
