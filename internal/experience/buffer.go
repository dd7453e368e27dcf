package experience

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
)

var (
	// ErrBufferClosed is returned when operations are attempted on a closed buffer
	ErrBufferClosed = errors.New("replay buffer is closed")
	// ErrBufferEmpty is returned when sampling from an empty buffer
	ErrBufferEmpty = errors.New("replay buffer is empty")
)

// DefaultCapacity is used when a buffer is created with a non-positive capacity.
const DefaultCapacity = 10000

// ReplayBuffer stores transitions for mini-batch sampling. When a transition arrives
// at a full buffer, every stored transition is discarded before the new one is added;
// there is no oldest-first eviction.
type ReplayBuffer struct {
	mu       sync.RWMutex
	items    []Transition
	capacity int
	closed   bool

	onOverflow func(discarded []Transition)

	// Statistics
	totalAdded     int64
	totalDiscarded int64
	clears         int64

	logger zerolog.Logger
}

// NewReplayBuffer creates a buffer holding at most capacity transitions.
func NewReplayBuffer(capacity int, logger zerolog.Logger) *ReplayBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ReplayBuffer{
		items:    make([]Transition, 0, capacity),
		capacity: capacity,
		logger:   logger.With().Str("component", "replay_buffer").Logger(),
	}
}

// OnOverflow registers fn to receive the transitions discarded by a wholesale clear.
// fn runs with the buffer locked and must not call back into it.
func (b *ReplayBuffer) OnOverflow(fn func(discarded []Transition)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onOverflow = fn
}

// Add stores t, clearing the buffer first if it is full. It reports whether a clear
// happened.
func (b *ReplayBuffer) Add(t Transition) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, ErrBufferClosed
	}

	cleared := false
	if len(b.items) >= b.capacity {
		discarded := b.items
		if b.onOverflow != nil {
			b.onOverflow(discarded)
		}
		b.items = make([]Transition, 0, b.capacity)
		b.totalDiscarded += int64(len(discarded))
		b.clears++
		cleared = true
		b.logger.Debug().
			Int("discarded", len(discarded)).
			Int64("clears", b.clears).
			Msg("Buffer full, cleared")
	}

	b.items = append(b.items, t)
	b.totalAdded++
	return cleared, nil
}

// Sample draws n distinct transitions uniformly. n is capped at the buffer size.
func (b *ReplayBuffer) Sample(n int, rng *rand.Rand) ([]Transition, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrBufferClosed
	}
	size := len(b.items)
	if size == 0 {
		return nil, ErrBufferEmpty
	}
	if n > size {
		n = size
	}

	// Floyd's algorithm: n distinct indices without building a permutation of the
	// whole buffer.
	picked := make(map[int]struct{}, n)
	out := make([]Transition, 0, n)
	for j := size - n; j < size; j++ {
		idx := rng.Intn(j + 1)
		if _, dup := picked[idx]; dup {
			idx = j
		}
		picked[idx] = struct{}{}
		out = append(out, b.items[idx])
	}
	return out, nil
}

// All returns a copy of the stored transitions, oldest first.
func (b *ReplayBuffer) All() []Transition {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Transition, len(b.items))
	copy(out, b.items)
	return out
}

// Size returns the current number of transitions in the buffer
func (b *ReplayBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Capacity returns the maximum capacity of the buffer
func (b *ReplayBuffer) Capacity() int {
	return b.capacity
}

// IsFull returns true if the next Add clears the buffer
func (b *ReplayBuffer) IsFull() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items) >= b.capacity
}

// Clear removes all transitions without counting an overflow.
func (b *ReplayBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = b.items[:0]
}

// Close rejects further adds and samples.
func (b *ReplayBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBufferClosed
	}
	b.closed = true
	b.items = nil
	return nil
}

// Stats returns buffer statistics
func (b *ReplayBuffer) Stats() BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BufferStats{
		Size:           len(b.items),
		Capacity:       b.capacity,
		TotalAdded:     b.totalAdded,
		TotalDiscarded: b.totalDiscarded,
		Clears:         b.clears,
		Closed:         b.closed,
	}
}

// BufferStats contains buffer statistics
type BufferStats struct {
	Size           int
	Capacity       int
	TotalAdded     int64
	TotalDiscarded int64
	Clears         int64
	Closed         bool
}
