package events

import (
	"sync"
	"time"
)

// Stage of a decision cycle reported to live subscribers.
type Stage string

const (
	StageStarted   Stage = "started"
	StageSnapshots Stage = "snapshots"
	StageDecided   Stage = "decided"
	StageOracle    Stage = "oracle_update"
	StageSwap      Stage = "swap"
	StageSkipped   Stage = "skipped"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// ProgressEvent is a live update about a running cycle.
type ProgressEvent struct {
	CycleID string    `json:"cycle_id"`
	Stage   Stage     `json:"stage"`
	Message string    `json:"message"`
	Time    time.Time `json:"ts"`
}

// Broadcaster fans out progress events to all subscribers via buffered channels.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan ProgressEvent]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan ProgressEvent]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping it for readers that are slow.
func (b *Broadcaster) Publish(e ProgressEvent) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *Broadcaster) Subscribe() chan ProgressEvent {
	ch := make(chan ProgressEvent, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan ProgressEvent) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
