package fanout

import (
	"sync"
	"time"
)

// idleThreshold marks a subscriber that has not read for this long.
const idleThreshold = 30 * time.Second

type slot struct {
	mu    sync.Mutex
	cond  *sync.Cond
	frame *Frame

	lastConsumedAt   time.Time
	lastConsumedSeq  uint64
	consecutiveDrops uint64
	totalDrops       uint64

	closed bool
}

func (sl *slot) put(f *Frame) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.closed {
		return
	}
	if sl.frame != nil {
		sl.consecutiveDrops++
		sl.totalDrops++
	}
	sl.frame = f
	sl.cond.Signal()
}

// Subscribe registers id and returns its blocking read function. The read
// function returns nil once the subscriber is removed or the supplier
// stops. It must be called from a single goroutine.
func (s *Supplier) Subscribe(id string) func() *Frame {
	if s.stopping.Load() {
		return func() *Frame { return nil }
	}

	sl := &slot{lastConsumedAt: time.Now()}
	sl.cond = sync.NewCond(&sl.mu)
	if old, loaded := s.slots.Swap(id, sl); loaded {
		old.(*slot).close()
	} else {
		s.subscribers.Add(1)
	}

	return func() *Frame {
		sl.mu.Lock()
		defer sl.mu.Unlock()

		for sl.frame == nil && !sl.closed {
			sl.cond.Wait()
		}
		if sl.closed {
			return nil
		}

		f := sl.frame
		sl.frame = nil
		sl.lastConsumedAt = time.Now()
		sl.lastConsumedSeq = f.Seq
		sl.consecutiveDrops = 0
		return f
	}
}

// Unsubscribe removes id and wakes its reader. Idempotent.
func (s *Supplier) Unsubscribe(id string) {
	v, ok := s.slots.LoadAndDelete(id)
	if !ok {
		return
	}
	s.subscribers.Add(-1)
	v.(*slot).close()
}

func (sl *slot) close() {
	sl.mu.Lock()
	sl.closed = true
	sl.cond.Broadcast()
	sl.mu.Unlock()
}

// Stats is a snapshot of distribution health.
type Stats struct {
	// InboxDrops counts frames replaced before distribution.
	InboxDrops uint64
	Published  uint64
	Consumers  map[string]ConsumerStats
}

// ConsumerStats describes one subscriber.
type ConsumerStats struct {
	LastConsumedAt   time.Time
	LastConsumedSeq  uint64
	ConsecutiveDrops uint64
	TotalDrops       uint64
	IsIdle           bool
}

// Stats returns a snapshot.
func (s *Supplier) Stats() Stats {
	st := Stats{
		InboxDrops: s.inboxDrops.Load(),
		Published:  s.publishSeq.Load(),
		Consumers:  make(map[string]ConsumerStats),
	}
	s.slots.Range(func(key, value any) bool {
		sl := value.(*slot)
		sl.mu.Lock()
		st.Consumers[key.(string)] = ConsumerStats{
			LastConsumedAt:   sl.lastConsumedAt,
			LastConsumedSeq:  sl.lastConsumedSeq,
			ConsecutiveDrops: sl.consecutiveDrops,
			TotalDrops:       sl.totalDrops,
			IsIdle:           time.Since(sl.lastConsumedAt) > idleThreshold,
		}
		sl.mu.Unlock()
		return true
	})
	return st
}
