package settings

// ActivitySettings holds the two runtime activity timeouts of a node. Values
// are plain millisecond counts; 0 means the corresponding timeout is disabled.
// ActivitySettings is a value type: it is copied across node boundaries, never
// aliased.
type ActivitySettings struct {
	IdleMs  uint32
	SleepMs uint32
}

// Equals compares both timeout fields.
func (a ActivitySettings) Equals(o ActivitySettings) bool {
	return a.IdleMs == o.IdleMs && a.SleepMs == o.SleepMs
}
