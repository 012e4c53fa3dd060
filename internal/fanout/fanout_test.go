package fanout

import (
	"context"
	"sync"
	"testing"
	"time"
)

func startSupplier(t *testing.T) *Supplier {
	t.Helper()
	s := New()
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { s.Stop() })
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStartTwice(t *testing.T) {
	s := startSupplier(t)
	if err := s.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}
}

func TestPublishNonBlocking(t *testing.T) {
	s := startSupplier(t)
	read := s.Subscribe("slow")
	defer s.Unsubscribe("slow")
	_ = read

	start := time.Now()
	for i := 0; i < 1000; i++ {
		s.Publish(&Frame{Data: []byte{1, 2, 3}, Width: 1, Height: 1})
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("1000 publishes took %v with an unread subscriber", elapsed)
	}
	t.Logf("✅ Publish never blocks on an unread subscriber")
}

func TestSubscriberReceivesNewestFrame(t *testing.T) {
	s := startSupplier(t)
	read := s.Subscribe("dump")
	defer s.Unsubscribe("dump")

	for i := 1; i <= 3; i++ {
		s.Publish(&Frame{SourceSeq: uint64(i)})
		waitFor(t, func() bool { return s.Stats().Published == uint64(i) })
	}

	f := read()
	if f == nil {
		t.Fatal("read returned nil")
	}
	if f.SourceSeq != 3 {
		t.Errorf("got SourceSeq %d, want newest (3)", f.SourceSeq)
	}

	st := s.Stats().Consumers["dump"]
	if st.TotalDrops != 2 || st.ConsecutiveDrops != 0 || st.LastConsumedSeq != 3 {
		t.Errorf("consumer stats %+v, want 2 total drops, streak reset, seq 3", st)
	}
}

func TestMultipleSubscribersShareFrame(t *testing.T) {
	s := startSupplier(t)
	readA := s.Subscribe("a")
	readB := s.Subscribe("b")

	if !s.HasSubscribers() {
		t.Fatal("HasSubscribers() = false")
	}

	f := &Frame{Data: []byte{9}}
	s.Publish(f)

	if got := readA(); got != f {
		t.Errorf("subscriber a got %p, want %p", got, f)
	}
	if got := readB(); got != f {
		t.Errorf("subscriber b got %p, want %p", got, f)
	}

	s.Unsubscribe("a")
	s.Unsubscribe("b")
	s.Unsubscribe("b")
	if s.HasSubscribers() {
		t.Error("HasSubscribers() = true after unsubscribing all")
	}
}

func TestUnsubscribeWakesReader(t *testing.T) {
	s := startSupplier(t)
	read := s.Subscribe("w")

	done := make(chan *Frame, 1)
	go func() { done <- read() }()

	time.Sleep(10 * time.Millisecond)
	s.Unsubscribe("w")

	select {
	case f := <-done:
		if f != nil {
			t.Errorf("read returned %v after Unsubscribe, want nil", f)
		}
	case <-time.After(time.Second):
		t.Fatal("reader still blocked after Unsubscribe")
	}
}

func TestStopReleasesReaders(t *testing.T) {
	s := New()
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c"} {
		read := s.Subscribe(id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for read() != nil {
			}
		}()
	}

	s.Publish(&Frame{})
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop() = %v", err)
	}

	finished := make(chan struct{})
	go func() { wg.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("readers not released by Stop")
	}

	if read := s.Subscribe("late"); read() != nil {
		t.Error("Subscribe after Stop should return a nil reader")
	}
	t.Logf("✅ Stop releases all readers")
}

func TestContextCancelStopsDistribution(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("distribution loop still running after context cancel")
	}
	s.Stop()
}
