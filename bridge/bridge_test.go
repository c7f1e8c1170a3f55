package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/reipc/errors"
	"github.com/vinayprograms/reipc/jsonrpc"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 5; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) failed on open queue", i)
		}
	}
	if q.Len() != 5 {
		t.Errorf("Len() = %d, want 5", q.Len())
	}
	for i := 0; i < 5; i++ {
		v, ok := q.Pop()
		if !ok || v != i {
			t.Fatalf("Pop() = %d, %v; want %d, true", v, ok, i)
		}
	}
}

func TestQueue_CloseDrainsThenEnds(t *testing.T) {
	q := NewQueue[string]()
	q.Push("a")
	q.Push("b")

	if !q.Close() {
		t.Fatal("first Close should report true")
	}
	if q.Close() {
		t.Error("second Close should report false")
	}
	if q.Push("c") {
		t.Error("Push after Close should fail")
	}

	for _, want := range []string{"a", "b"} {
		v, ok := q.Pop()
		if !ok || v != want {
			t.Fatalf("Pop() = %q, %v; want %q", v, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on closed, empty queue should report false")
	}
}

func TestQueue_CloseWakesBlockedConsumers(t *testing.T) {
	q := NewQueue[int]()

	const consumers = 4
	var wg sync.WaitGroup
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := q.Pop(); ok {
				t.Error("expected end of stream")
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumers still blocked after Close")
	}
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()
	const producers, perProducer = 8, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}

	got := 0
	done := make(chan struct{})
	go func() {
		for {
			if _, ok := q.Pop(); !ok {
				close(done)
				return
			}
			got++
		}
	}()

	wg.Wait()
	q.Close()
	<-done

	if got != producers*perProducer {
		t.Errorf("popped %d items, want %d", got, producers*perProducer)
	}
}

func TestBridge_RoundTrip(t *testing.T) {
	handle, conn := New()

	if err := handle.Send([]byte("req")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if conn.Backlog() != 1 {
		t.Errorf("Backlog() = %d, want 1", conn.Backlog())
	}
	frame, ok := conn.Next()
	if !ok || string(frame) != "req" {
		t.Fatalf("Next() = %q, %v", frame, ok)
	}

	if err := conn.Deliver(&jsonrpc.Reply{ID: 1}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	reply, ok := handle.Recv()
	if !ok || reply.ID != 1 {
		t.Fatalf("Recv() = %+v, %v", reply, ok)
	}
}

func TestBridge_EndInbound(t *testing.T) {
	handle, conn := New()

	conn.Deliver(&jsonrpc.Reply{ID: 7})
	if !conn.EndInbound() {
		t.Fatal("first EndInbound should report true")
	}
	if conn.EndInbound() {
		t.Error("EndInbound must take effect once")
	}

	if reply, ok := handle.Recv(); !ok || reply.ID != 7 {
		t.Fatalf("Recv() = %+v, %v; want the reply queued before the end", reply, ok)
	}
	if _, ok := handle.Recv(); ok {
		t.Error("Recv after end should report false")
	}

	err := conn.Deliver(&jsonrpc.Reply{ID: 8})
	if !errors.IsClosed(err) {
		t.Errorf("Deliver after end = %v, want CLOSED", err)
	}
}

func TestBridge_CloseSend(t *testing.T) {
	handle, conn := New()

	handle.Send([]byte("last"))
	handle.CloseSend()

	if err := handle.Send([]byte("late")); !errors.IsClosed(err) {
		t.Errorf("Send after CloseSend = %v, want CLOSED", err)
	}
	if frame, ok := conn.Next(); !ok || string(frame) != "last" {
		t.Fatalf("Next() = %q, %v; queued frames must still flush", frame, ok)
	}
	if _, ok := conn.Next(); ok {
		t.Error("Next after the end should report false")
	}
	if conn.Abort() {
		t.Error("Abort after CloseSend should be a no-op")
	}
}
