package node

import (
	"errors"
	"sync"

	"github.com/cormoran/zmk-module-settings-rpc/src/relay"
	"github.com/cormoran/zmk-module-settings-rpc/src/settings"
)

// FanoutRequestID is the reserved request ID for the fan-out protocol, where
// reports are forwarded as independent notifications instead of being
// aggregated. Reset never hands it out for a collection round.
const FanoutRequestID uint8 = 0

var (
	// ErrStaleReport rejects a report whose ID belongs to a closed round.
	ErrStaleReport = errors.New("report for a stale request id")
	// ErrWindowClosed rejects a late report for the current round; a closed
	// window does not reopen.
	ErrWindowClosed = errors.New("collection window closed")
	// ErrCollectionFull rejects reports beyond the entry bound.
	ErrCollectionFull = errors.New("collection full")
)

// Entry is one node's settings with its resolved origin.
type Entry struct {
	Settings settings.ActivitySettings `json:"settings"`
	Source   relay.Source              `json:"source"`
}

// Collection accumulates the reports of one poll round on the central node.
// It is constructed once at startup and reused: Reset opens a new round under
// a fresh request ID, which atomically invalidates any report still in flight
// for the previous round.
//
// The report listener appends entries from the node loop while the poll
// caller waits out the window on its own goroutine, so access is
// mutex-guarded.
type Collection struct {
	sync.Mutex

	entries   []Entry
	requestID uint8
	open      bool
	capacity  int
}

// NewCollection ...
func NewCollection() *Collection {
	return &Collection{
		capacity: relay.MaxPeripherals + 1,
	}
}

// Reset starts a new round: entries are cleared, the request ID is
// incremented (skipping the reserved fan-out ID), and the central node's own
// settings become the first entry. Returns the round's request ID.
func (c *Collection) Reset(central settings.ActivitySettings) uint8 {
	c.Lock()
	defer c.Unlock()

	c.requestID++
	if c.requestID == FanoutRequestID {
		c.requestID++
	}

	c.entries = []Entry{{Settings: central, Source: relay.Central}}
	c.open = true

	return c.requestID
}

// Add appends a reported entry if the report belongs to the open round and
// the bound has not been reached.
func (c *Collection) Add(e Entry, requestID uint8) error {
	c.Lock()
	defer c.Unlock()

	if requestID != c.requestID {
		return ErrStaleReport
	}
	if !c.open {
		return ErrWindowClosed
	}
	if len(c.entries) >= c.capacity {
		return ErrCollectionFull
	}

	c.entries = append(c.entries, e)
	return nil
}

// RequestID returns the current round's request ID.
func (c *Collection) RequestID() uint8 {
	c.Lock()
	defer c.Unlock()
	return c.requestID
}

// Close ends the round and computes the consistency verdict: in sync iff
// every entry equals the first (central) entry. The returned slice is a
// snapshot; partial results are valid, final answers.
func (c *Collection) Close() ([]Entry, bool) {
	c.Lock()
	defer c.Unlock()

	c.open = false

	entries := append([]Entry{}, c.entries...)
	if len(entries) == 0 {
		return entries, true
	}

	inSync := true
	for _, e := range entries[1:] {
		if !e.Settings.Equals(entries[0].Settings) {
			inSync = false
			break
		}
	}

	return entries, inSync
}
