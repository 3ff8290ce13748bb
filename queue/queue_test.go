package queue

import (
	"bytes"
	"sync"
	"testing"
)

func TestNewQueueIsEmpty(t *testing.T) {
	q := New()
	if q.Length() != 0 {
		t.Errorf("expected queue to be empty but it has %d items", q.Length())
	}
}

func TestPushAddsFrames(t *testing.T) {
	q := New()
	for i := 0; i < 10; i++ {
		q.Push([]byte{0x01, 0x02, 0x03, 0x04})
	}
	if q.Length() != 10 {
		t.Errorf("pushed 10 frames onto the queue but it only has %d", q.Length())
	}
}

func TestPopReturnsFIFOOrder(t *testing.T) {
	q := New()
	frames := [][]byte{{0x00}, {0x11}, {0x22}, {0x33}, {0x44}}
	for _, f := range frames {
		q.Push(f)
	}
	for i := 0; i < len(frames); i++ {
		popped := q.Pop()
		if !bytes.Equal(popped, frames[i]) {
			t.Errorf("popped %v but expected %v", popped, frames[i])
		}
	}
}

// Push must be safe to call from several goroutines at once: the outbound
// generator and the socket writer run in different goroutines,
// synchronized only by this queue's own lock when a peer's mutex isn't
// already held.
func TestPushIsSafeForConcurrentUse(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Push([]byte{0xAA})
		}()
	}
	wg.Wait()
	if q.Length() != 50 {
		t.Errorf("expected 50 queued frames, got %d", q.Length())
	}
}
