package props

import (
	"errors"
	"fmt"
	"sync"
)

// ErrFieldUnavailable is returned by a Sink when the host does not expose
// the requested field or refuses the write.
var ErrFieldUnavailable = errors.New("identity field unavailable")

// Sink receives field overrides. Writes are independent: one failing write
// must not affect the others.
type Sink interface {
	SetField(field Field, value Value) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(field Field, value Value) error

func (f SinkFunc) SetField(field Field, value Value) error {
	return f(field, value)
}

// Store is an in-memory Sink that also serves reads. It is safe for
// concurrent use.
type Store struct {
	mu        sync.RWMutex
	values    map[Field]Value
	supported map[Field]struct{}
	writes    []Entry
}

// NewStore creates a store that accepts the given fields, or every known
// field when none are given.
func NewStore(supported ...Field) *Store {
	if len(supported) == 0 {
		supported = AllFields
	}
	s := &Store{
		values:    make(map[Field]Value),
		supported: make(map[Field]struct{}, len(supported)),
	}
	for _, f := range supported {
		s.supported[f] = struct{}{}
	}
	return s
}

// Seed sets initial values without recording them as writes.
func (s *Store) Seed(entries ...Entry) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.values[e.Field] = e.Value
	}
	return s
}

func (s *Store) SetField(field Field, value Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.supported[field]; !ok {
		return fmt.Errorf("set %s: %w", field, ErrFieldUnavailable)
	}
	if field.IsVersion() != value.IsInt() {
		return fmt.Errorf("set %s to %q: value kind mismatch: %w", field, value.String(), ErrFieldUnavailable)
	}
	s.values[field] = value
	s.writes = append(s.writes, Entry{Field: field, Value: value})
	return nil
}

// Get returns the current value of a field.
func (s *Store) Get(field Field) (Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[field]
	return v, ok
}

// Writes returns every accepted write in order.
func (s *Store) Writes() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.writes))
	copy(out, s.writes)
	return out
}

// Snapshot returns the current values keyed by field.
func (s *Store) Snapshot() map[Field]Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Field]Value, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Reset drops all values and recorded writes.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[Field]Value)
	s.writes = nil
}
