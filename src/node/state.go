package node

import (
	"sync"
	"sync/atomic"
)

// State captures the state of a split node: Idle, Collecting, or Shutdown.
type State uint32

const (
	// Idle means no settings collection is outstanding.
	Idle State = iota
	// Collecting means a collection window is open.
	Collecting
	// Shutdown is shutdown
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Collecting:
		return "Collecting"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// WGLIMIT is the maximum number of goroutines that can be launched through
// state.goFunc
const WGLIMIT = 20

type state struct {
	state   uint32
	wg      sync.WaitGroup
	wgCount int32
}

func (b *state) getState() State {
	return State(atomic.LoadUint32(&b.state))
}

func (b *state) setState(s State) {
	atomic.StoreUint32(&b.state, uint32(s))
}

// casState transitions from one state to another atomically and reports
// whether the transition happened. It is what keeps two collection rounds
// from ever being open at the same time.
func (b *state) casState(from, to State) bool {
	return atomic.CompareAndSwapUint32(&b.state, uint32(from), uint32(to))
}

// Start a goroutine and add it to waitgroup
func (b *state) goFunc(f func()) {
	tempWgCount := atomic.LoadInt32(&b.wgCount)
	if tempWgCount < WGLIMIT {
		b.wg.Add(1)
		atomic.AddInt32(&b.wgCount, 1)
		go func() {
			defer b.wg.Done()
			atomic.AddInt32(&b.wgCount, -1)
			f()
		}()
	}
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
