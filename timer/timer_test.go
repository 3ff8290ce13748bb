package timer

import (
	"testing"
	"time"
)

func TestNewFiresCallback(t *testing.T) {
	var ran bool
	ts := New(50*time.Millisecond, func() { ran = true })
	if !ts.Running() {
		t.Fatal("expected timer to be running but it's not")
	}
	time.Sleep(100 * time.Millisecond)
	if !ran {
		t.Fatal("timer did not call its function")
	}
	if ts.Running() {
		t.Fatal("expected timer to report stopped once its function has fired")
	}
}

func TestResetDelaysCallback(t *testing.T) {
	var ran bool
	ts := New(50*time.Millisecond, func() { ran = true })
	time.Sleep(30 * time.Millisecond)
	ts.Reset()
	time.Sleep(35 * time.Millisecond)
	if ran {
		t.Fatal("timer fired before its reset interval elapsed")
	}
	time.Sleep(30 * time.Millisecond)
	if !ran {
		t.Fatal("timer did not fire after Reset")
	}
}

func TestStopPreventsCallback(t *testing.T) {
	var ran bool
	ts := New(50*time.Millisecond, func() { ran = true })
	ts.Stop()
	if ts.Running() {
		t.Fatal("expected timer to be stopped but it's not")
	}
	time.Sleep(100 * time.Millisecond)
	if ran {
		t.Fatal("timer called its function after Stop")
	}
}

// Calling Stop twice must not hang: a plain time.Timer created via
// AfterFunc never sends on its C channel, so a naive drain-on-Stop
// implementation deadlocks here.
func TestStopTwiceDoesNotDeadlock(t *testing.T) {
	ts := New(50*time.Millisecond, func() {})
	ts.Stop()
	done := make(chan struct{})
	go func() {
		ts.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Stop call did not return")
	}
}

func TestRunningReflectsTimerState(t *testing.T) {
	ts := New(50*time.Millisecond, func() {})
	if !ts.Running() {
		t.Fatal("expected timer to be running but it's not")
	}
	ts.Stop()
	if ts.Running() {
		t.Fatal("expected timer to be stopped but it's not")
	}
}
