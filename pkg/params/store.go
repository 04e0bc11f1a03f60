package params

import "sync"

// MemoryStore is the in-process Store shared by the loop and the panels.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]int

	// OnChange, if set, is called after every successful Set.
	OnChange func(name string, v int)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store seeded with the slider defaults.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{values: make(map[string]int, len(specs))}
	for _, sp := range specs {
		s.values[sp.Name] = sp.Default
	}
	return s
}

// Get returns the current value of name.
func (s *MemoryStore) Get(name string) (int, error) {
	if _, err := Lookup(name); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name], nil
}

// Set stores v, clamped to the slider range. The new value is visible to
// the next read.
func (s *MemoryStore) Set(name string, v int) error {
	sp, err := Lookup(name)
	if err != nil {
		return err
	}
	v = sp.Clamp(v)

	s.mu.Lock()
	s.values[name] = v
	cb := s.OnChange
	s.mu.Unlock()

	if cb != nil {
		cb(name, v)
	}
	return nil
}

// Adjust adds delta to name and returns the stored value.
func (s *MemoryStore) Adjust(name string, delta int) (int, error) {
	sp, err := Lookup(name)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	v := sp.Clamp(s.values[name] + delta)
	s.values[name] = v
	cb := s.OnChange
	s.mu.Unlock()

	if cb != nil {
		cb(name, v)
	}
	return v, nil
}

// Snapshot copies all parameters under a single read lock.
func (s *MemoryStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Bounds: ColorBounds{
			Lower: [3]int{s.values[HueLower], s.values[SatLower], s.values[ValLower]},
			Upper: [3]int{s.values[HueUpper], s.values[SatUpper], s.values[ValUpper]},
		},
		Speed:       s.values[Speed],
		SteerOffset: s.values[SteerOffset],
	}
}
