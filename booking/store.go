package booking

import "sync"

// Store holds one wizard's draft. Every change recomputes the price and is
// pushed to subscribers.
type Store struct {
	mu        sync.RWMutex
	draft     Draft
	booker    Booker
	nextID    int
	listeners map[int]func(Draft)
}

func NewStore() *Store {
	return &Store{listeners: make(map[int]func(Draft))}
}

// Snapshot returns a copy of the current draft.
func (s *Store) Snapshot() Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft.Clone()
}

// SetDraft shallow-merges p into the draft.
func (s *Store) SetDraft(p Patch) error {
	s.mu.Lock()
	merged, err := s.draft.Merge(p)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.fillResident(&merged)
	merged.Price = draftPrice(merged)
	s.draft = merged
	s.mu.Unlock()

	s.notify()
	return nil
}

// update applies fn to a copy of the draft and stores the result.
func (s *Store) update(fn func(*Draft)) {
	s.mu.Lock()
	d := s.draft.Clone()
	fn(&d)
	s.fillResident(&d)
	d.Price = draftPrice(d)
	s.draft = d
	s.mu.Unlock()

	s.notify()
}

// Reset clears the draft to its initial empty state.
func (s *Store) Reset() {
	s.mu.Lock()
	s.draft = Draft{}
	s.mu.Unlock()

	s.notify()
}

// Subscribe registers fn for every change. The returned func removes it.
func (s *Store) Subscribe(fn func(Draft)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	d := s.draft.Clone()
	fns := make([]func(Draft), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(d)
	}
}
