package llamacpp

import "sync"

// lease reference-counts a resource that is freed exactly once, after it has
// been retired and the last holder has let go. Once retired it can no longer
// be pinned, so a caller that lost the race to a reload re-reads the current
// model instead of using the retired one.
type lease struct {
	mu      sync.Mutex
	refs    int
	retired bool
	free    func()
	freed   chan struct{}
}

func newLease(free func()) *lease {
	return &lease{free: free, freed: make(chan struct{})}
}

// pin takes a reference. It fails once the lease is retired.
func (l *lease) pin() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.retired {
		return false
	}
	l.refs++
	return true
}

func (l *lease) unpin() {
	l.mu.Lock()
	l.refs--
	last := l.retired && l.refs == 0
	l.mu.Unlock()
	if last {
		l.release()
	}
}

// retire forbids new pins. The returned channel closes once the resource has
// been freed.
func (l *lease) retire() <-chan struct{} {
	l.mu.Lock()
	first := !l.retired
	l.retired = true
	idle := l.refs == 0
	l.mu.Unlock()
	if first && idle {
		l.release()
	}
	return l.freed
}

func (l *lease) release() {
	if l.free != nil {
		l.free()
	}
	close(l.freed)
}
