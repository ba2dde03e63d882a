package llamacpp

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestLease_FreesAfterLastHolder(t *testing.T) {
	var frees atomic.Int32
	l := newLease(func() { frees.Add(1) })
	if !l.pin() || !l.pin() {
		t.Fatalf("pin failed on a live lease")
	}
	freed := l.retire()
	if l.pin() {
		t.Fatalf("pin succeeded after retire")
	}
	l.unpin()
	if frees.Load() != 0 {
		t.Fatalf("freed while still pinned")
	}
	l.unpin()
	<-freed
	if n := frees.Load(); n != 1 {
		t.Fatalf("frees = %d", n)
	}
	l.retire()
	if n := frees.Load(); n != 1 {
		t.Fatalf("second retire freed again: %d", n)
	}
}

func TestLease_RetireIdleFreesImmediately(t *testing.T) {
	var freed atomic.Bool
	l := newLease(func() { freed.Store(true) })
	<-l.retire()
	if !freed.Load() {
		t.Fatalf("idle lease not freed on retire")
	}
}

// A pin either lands before retire, and holds the resource alive until
// unpin, or fails. It never observes a freed resource.
func TestLease_PinRetireRace(t *testing.T) {
	for i := 0; i < 200; i++ {
		var gone atomic.Bool
		l := newLease(func() { gone.Store(true) })
		var wg sync.WaitGroup
		var used atomic.Bool
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !l.pin() {
					return
				}
				if gone.Load() {
					used.Store(true)
				}
				l.unpin()
			}()
		}
		freed := l.retire()
		wg.Wait()
		<-freed
		if used.Load() {
			t.Fatalf("iteration %d: pinned resource was already freed", i)
		}
	}
}
