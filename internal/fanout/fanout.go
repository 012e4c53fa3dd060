// Package fanout hands processed frames to any number of slow consumers
// without ever blocking the streaming thread.
//
// Publish drops the frame into a single-slot inbox; a distribution goroutine
// copies the pointer into one single-slot mailbox per subscriber. Every slot
// keeps only the newest frame, so a slow consumer loses frames instead of
// building a backlog.
package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyStarted is returned by a second Start call.
var ErrAlreadyStarted = errors.New("fanout: already started")

// Frame is a binned frame handed to consumers. Data is tightly packed
// (Width*3 bytes per row) and MUST NOT be modified after Publish.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Order     string
	Algorithm string
	PTS       time.Duration
	Timestamp time.Time
	SourceSeq uint64
	TraceID   string

	// Seq is assigned during distribution.
	Seq uint64
}

// Supplier distributes frames to subscribers.
type Supplier struct {
	inboxMu    sync.Mutex
	inboxCond  *sync.Cond
	inboxFrame *Frame
	inboxDrops atomic.Uint64

	slots       sync.Map // id -> *slot
	subscribers atomic.Int32
	publishSeq  atomic.Uint64

	mu       sync.Mutex
	started  bool
	stopping atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New returns a stopped supplier.
func New() *Supplier {
	s := &Supplier{}
	s.inboxCond = sync.NewCond(&s.inboxMu)
	return s
}

// Start launches the distribution goroutine.
func (s *Supplier) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.wg.Add(1)
	go s.distributionLoop()

	// Wake the loop if the parent context is cancelled while idle.
	go func() {
		<-s.ctx.Done()
		s.inboxMu.Lock()
		s.inboxCond.Broadcast()
		s.inboxMu.Unlock()
	}()
	return nil
}

// Stop ends distribution and closes every subscriber's mailbox, so blocked
// read functions return nil. Idempotent.
func (s *Supplier) Stop() error {
	s.mu.Lock()
	if !s.started || s.stopping.Load() {
		s.mu.Unlock()
		return nil
	}
	s.stopping.Store(true)
	s.mu.Unlock()

	s.cancel()
	s.inboxMu.Lock()
	s.inboxCond.Broadcast()
	s.inboxMu.Unlock()
	s.wg.Wait()

	s.slots.Range(func(key, value any) bool {
		s.Unsubscribe(key.(string))
		return true
	})
	return nil
}

// Publish offers a frame to subscribers. Never blocks; an undistributed
// previous frame is replaced and counted as an inbox drop.
func (s *Supplier) Publish(f *Frame) {
	if s.stopping.Load() {
		return
	}

	s.inboxMu.Lock()
	if s.inboxFrame != nil {
		s.inboxDrops.Add(1)
	}
	s.inboxFrame = f
	s.inboxCond.Signal()
	s.inboxMu.Unlock()
}

// HasSubscribers reports whether Publish would reach anyone. Hosts use it to
// skip copying frames nobody reads.
func (s *Supplier) HasSubscribers() bool {
	return s.subscribers.Load() > 0
}

func (s *Supplier) distributionLoop() {
	defer s.wg.Done()

	for {
		s.inboxMu.Lock()
		for s.inboxFrame == nil {
			if s.ctx.Err() != nil {
				s.inboxMu.Unlock()
				return
			}
			s.inboxCond.Wait()
		}
		if s.ctx.Err() != nil {
			s.inboxMu.Unlock()
			return
		}
		f := s.inboxFrame
		s.inboxFrame = nil
		s.inboxMu.Unlock()

		f.Seq = s.publishSeq.Add(1)
		s.slots.Range(func(_, value any) bool {
			value.(*slot).put(f)
			return true
		})
	}
}
