package progress

import "sync"

// Publisher accepts progress events from the run worker.
type Publisher interface {
	Publish(Event)
}

// Channel is the single-producer, single-consumer handoff between the run
// worker and the display. Publish blocks while the buffer is full so no
// record is dropped; publishing after Close is a no-op.
type Channel struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

func NewChannel(buffer int) *Channel {
	if buffer < 0 {
		buffer = 0
	}
	return &Channel{ch: make(chan Event, buffer)}
}

func (c *Channel) Publish(e Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.ch <- e
}

// Events is the receive side for the consumer.
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// Close ends the stream. The consumer sees a closed channel after draining
// buffered events. Close is idempotent and must be called from the producer
// side once it has stopped publishing.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
