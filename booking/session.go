package booking

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the active wizard of one customer.
type Session struct {
	ID       string
	Wizard   *Wizard
	lastSeen time.Time
}

// WizardFactory builds a fresh wizard for a customer.
type WizardFactory func(booker Booker) *Wizard

// Registry keeps at most one wizard session per customer.
type Registry struct {
	mu        sync.Mutex
	sessions  map[uint]*Session
	newWizard WizardFactory
	now       func() time.Time
}

func NewRegistry(newWizard WizardFactory) *Registry {
	return &Registry{
		sessions:  make(map[uint]*Session),
		newWizard: newWizard,
		now:       time.Now,
	}
}

// Start opens a new session, abandoning any session the customer already
// had.
func (r *Registry) Start(booker Booker) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sessions[booker.ID]; ok {
		old.Wizard.Reset()
		log.Printf("⚠️ Abandoned booking session %s for customer %d", old.ID, booker.ID)
	}
	s := &Session{
		ID:       uuid.NewString(),
		Wizard:   r.newWizard(booker),
		lastSeen: r.now(),
	}
	r.sessions[booker.ID] = s
	return s
}

// Get returns the customer's session and marks it as used.
func (r *Registry) Get(customerID uint) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[customerID]
	if ok {
		s.lastSeen = r.now()
	}
	return s, ok
}

// Abandon resets and drops the customer's session.
func (r *Registry) Abandon(customerID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[customerID]
	if !ok {
		return false
	}
	s.Wizard.Reset()
	delete(r.sessions, customerID)
	return true
}

// Sweep abandons sessions idle for longer than ttl and returns how many
// were dropped.
func (r *Registry) Sweep(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	swept := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			s.Wizard.Reset()
			delete(r.sessions, id)
			swept++
		}
	}
	return swept
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
