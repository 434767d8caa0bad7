package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFuncOrder(t *testing.T) {
	c := Fake(epoch)
	var fired []int
	c.AfterFunc(30*time.Millisecond, func() { fired = append(fired, 3) })
	c.AfterFunc(10*time.Millisecond, func() { fired = append(fired, 1) })
	c.AfterFunc(20*time.Millisecond, func() { fired = append(fired, 2) })

	c.Advance(15 * time.Millisecond)
	if len(fired) != 1 || fired[0] != 1 {
		t.Fatalf("after 15ms fired = %v, want [1]", fired)
	}
	c.Advance(time.Second)
	if len(fired) != 3 || fired[1] != 2 || fired[2] != 3 {
		t.Fatalf("fired = %v, want [1 2 3]", fired)
	}
	if c.Pending() != 0 {
		t.Errorf("pending = %d, want 0", c.Pending())
	}
}

func TestFakeTimerStop(t *testing.T) {
	c := Fake(epoch)
	called := false
	tm := c.AfterFunc(time.Second, func() { called = true })
	if !tm.Stop() {
		t.Fatal("first Stop should report true")
	}
	if tm.Stop() {
		t.Error("second Stop should report false")
	}
	c.Advance(2 * time.Second)
	if called {
		t.Error("stopped timer fired")
	}
}

func TestFakeNewTimer(t *testing.T) {
	c := Fake(epoch)
	tm := c.NewTimer(time.Minute)
	select {
	case <-tm.C:
		t.Fatal("timer fired early")
	default:
	}
	c.Advance(time.Minute)
	select {
	case got := <-tm.C:
		if !got.Equal(epoch.Add(time.Minute)) {
			t.Errorf("fire time = %v", got)
		}
	default:
		t.Fatal("timer did not fire")
	}
}

func TestBlockUntil(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		tm := c.NewTimer(time.Second)
		<-tm.C
		close(done)
	}()
	c.BlockUntil(1)
	c.Advance(time.Second)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine never observed the timer")
	}
}
