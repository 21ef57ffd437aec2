package booking

// Booker is the customer running the wizard.
type Booker struct {
	ID    uint
	Name  string
	Phone string
}

// SetBooker records whose details same-as-booker copies.
func (s *Store) SetBooker(b Booker) {
	s.mu.Lock()
	s.booker = b
	s.mu.Unlock()
}

// fillResident copies the booker into the resident fields whenever the
// draft says someone is home and it is the booker. Callers hold s.mu.
func (s *Store) fillResident(d *Draft) {
	if d.IsResident && d.SameAsBooker && s.booker.ID != 0 {
		d.ResidentName = s.booker.Name
		d.ResidentPhone = PhoneNumber(s.booker.Phone)
	}
}

// SetResident toggles whether someone is home during the cleaning. Turning
// it on fills the resident only when same-as-booker is already checked;
// turning it off clears them.
func (s *Store) SetResident(isResident bool) {
	s.update(func(d *Draft) {
		d.IsResident = isResident
		if !isResident {
			d.SameAsBooker = false
			d.ResidentName = ""
			d.ResidentPhone = ""
		}
	})
}

// SetSameAsBooker copies the booker's name and phone into the resident
// fields while the resident flag is on. Unchecking clears them.
func (s *Store) SetSameAsBooker(same bool, booker Booker) {
	s.SetBooker(booker)
	s.update(func(d *Draft) {
		d.SameAsBooker = same
		switch {
		case same && d.IsResident:
			d.ResidentName = booker.Name
			d.ResidentPhone = PhoneNumber(booker.Phone)
		case !same:
			d.ResidentName = ""
			d.ResidentPhone = ""
		}
	})
}
