package settings

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrInvalidSettings is returned by Set when the validator rejects a value.
var ErrInvalidSettings = errors.New("invalid activity settings")

// ValidateFunc stands in for the hardware layer's acceptance rule. The store
// treats the outcome as opaque: accepted or not.
type ValidateFunc func(ActivitySettings) bool

// ChangeFunc is called after every successful, value-changing Set.
type ChangeFunc func(ActivitySettings)

// AcceptAll is the default validator.
func AcceptAll(ActivitySettings) bool { return true }

// Store holds the current activity settings of the local node. Writes are
// atomic with respect to concurrent readers; a reader never observes a
// half-written pair.
type Store struct {
	sync.RWMutex

	current  ActivitySettings
	validate ValidateFunc
	onChange ChangeFunc

	logger *logrus.Entry
}

// NewStore returns a Store seeded with initial values. A nil validate accepts
// everything.
func NewStore(initial ActivitySettings, validate ValidateFunc, logger *logrus.Entry) *Store {
	if validate == nil {
		validate = AcceptAll
	}
	return &Store{
		current:  initial,
		validate: validate,
		logger:   logger,
	}
}

// OnChange registers the single change callback. The store fires it exactly
// once per successful, value-changing Set, and never from Apply.
func (s *Store) OnChange(fn ChangeFunc) {
	s.Lock()
	defer s.Unlock()
	s.onChange = fn
}

// Get returns the current settings.
func (s *Store) Get() ActivitySettings {
	s.RLock()
	defer s.RUnlock()
	return s.current
}

// Set validates and writes new settings, then fires the change callback. A
// write of the current value is a no-op and fires nothing.
func (s *Store) Set(a ActivitySettings) error {
	s.Lock()

	if !s.validate(a) {
		s.Unlock()
		return fmt.Errorf("%w: idle=%d ms, sleep=%d ms", ErrInvalidSettings, a.IdleMs, a.SleepMs)
	}

	if s.current.Equals(a) {
		s.Unlock()
		return nil
	}

	s.current = a
	fn := s.onChange
	s.Unlock()

	s.logger.WithFields(logrus.Fields{
		"idle_ms":  a.IdleMs,
		"sleep_ms": a.SleepMs,
	}).Debug("Activity settings updated")

	if fn != nil {
		fn(a)
	}

	return nil
}

// Apply is the write path for settings received from another node. It goes
// through the same validation but never fires the change callback, so a
// relayed value cannot be re-broadcast.
func (s *Store) Apply(a ActivitySettings) {
	s.Lock()
	defer s.Unlock()

	if !s.validate(a) {
		s.logger.WithFields(logrus.Fields{
			"idle_ms":  a.IdleMs,
			"sleep_ms": a.SleepMs,
		}).Warn("Rejected relayed activity settings")
		return
	}

	s.current = a
}
