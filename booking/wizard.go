package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/models"
)

var ErrWizardComplete = errors.New("booking wizard is already complete")

// ReservationCreator performs the single insert at confirmation.
type ReservationCreator interface {
	Create(ctx context.Context, reservation *models.Reservation) error
}

// PaymentMethodChecker reports whether the customer has a usable payment
// method on file.
type PaymentMethodChecker interface {
	HasPaymentMethod(ctx context.Context, customerID uint) (bool, error)
}

// OneTimeMatcher picks a cleaner for a one-time booking. A nil id defers
// matching to the back office.
type OneTimeMatcher interface {
	MatchCleanerForOneTimeBooking(ctx context.Context, d Draft) (*uint, error)
}

// AfterCommitHook runs once a reservation has been stored.
type AfterCommitHook func(ctx context.Context, reservation *models.Reservation)

type Options struct {
	Payments PaymentMethodChecker
	Matcher  OneTimeMatcher
	Location *time.Location
	Hooks    []AfterCommitHook
}

// State is what a client needs to render the current step.
type State struct {
	Step        StepID              `json:"step"`
	Sequence    []StepID            `json:"sequence"`
	Progress    Progress            `json:"progress"`
	Draft       Draft               `json:"draft"`
	Reservation *models.Reservation `json:"reservation,omitempty"`
}

// Wizard walks one customer through the booking steps. The draft is only
// written to the database at confirmation.
type Wizard struct {
	mu       sync.Mutex
	booker   Booker
	store    *Store
	creator  ReservationCreator
	opts     Options
	step     StepID
	visited  map[StepID]bool
	reserved *models.Reservation
}

func NewWizard(booker Booker, creator ReservationCreator, opts Options) *Wizard {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	store := NewStore()
	store.SetBooker(booker)
	return &Wizard{
		booker:  booker,
		store:   store,
		creator: creator,
		opts:    opts,
		step:    StepService,
		visited: map[StepID]bool{StepService: true},
	}
}

func (w *Wizard) Store() *Store { return w.store }

func (w *Wizard) Booker() Booker { return w.booker }

func (w *Wizard) Current() StepID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Progress() Progress {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ProgressFor(DeriveStepSequence(w.store.Snapshot()), w.step)
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *Wizard) stateLocked() State {
	d := w.store.Snapshot()
	seq := DeriveStepSequence(d)
	return State{
		Step:        w.step,
		Sequence:    seq,
		Progress:    ProgressFor(seq, w.step),
		Draft:       d,
		Reservation: w.reserved,
	}
}

// GoNext merges patch into the draft, validates the current step and
// advances along the sequence derived from the merged draft. At
// confirmation it commits the reservation.
func (w *Wizard) GoNext(ctx context.Context, patch Patch) (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step == StepComplete {
		return w.stateLocked(), ErrWizardComplete
	}
	if err := w.store.SetDraft(patch); err != nil {
		return w.stateLocked(), withStep(err, w.step)
	}
	d := w.store.Snapshot()
	if err := ValidateStep(w.step, d); err != nil {
		return w.stateLocked(), err
	}

	switch w.step {
	case StepCleaner:
		w.matchOneTime(ctx, d)
	case StepPayment:
		if err := w.checkPayment(ctx); err != nil {
			return w.stateLocked(), err
		}
	case StepConfirmation:
		err := w.commitLocked(ctx)
		return w.stateLocked(), err
	}

	seq := DeriveStepSequence(w.store.Snapshot())
	idx := indexOf(seq, w.step)
	if idx < 0 {
		// The area step was dropped by a category change; resume after service.
		idx = 0
	}
	next := seq[idx+1]
	if next == StepComplete {
		// Area-only flows finish without a reservation.
		w.store.Reset()
	}
	w.step = next
	w.visited[next] = true
	return w.stateLocked(), nil
}

// GoBack moves to the previous step without validating or discarding
// anything.
func (w *Wizard) GoBack() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step == StepComplete {
		return w.stateLocked()
	}
	seq := DeriveStepSequence(w.store.Snapshot())
	if idx := indexOf(seq, w.step); idx > 0 {
		w.step = seq[idx-1]
	}
	return w.stateLocked()
}

// GoTo jumps to a step of the current sequence that has already been
// reached.
func (w *Wizard) GoTo(step StepID) (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step == StepComplete {
		return w.stateLocked(), ErrWizardComplete
	}
	seq := DeriveStepSequence(w.store.Snapshot())
	if indexOf(seq, step) < 0 || !w.visited[step] || step == StepComplete {
		return w.stateLocked(), apperrors.Validation(string(w.step), "step")
	}
	w.step = step
	return w.stateLocked(), nil
}

// Confirm commits the draft. It is GoNext at the confirmation step
// without a patch.
func (w *Wizard) Confirm(ctx context.Context) (State, error) {
	w.mu.Lock()
	step := w.step
	w.mu.Unlock()
	if step != StepConfirmation {
		return w.State(), apperrors.Validation(string(step), "step")
	}
	return w.GoNext(ctx, nil)
}

// Reset abandons the draft and returns to the first step.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.store.Reset()
	w.step = StepService
	w.visited = map[StepID]bool{StepService: true}
	w.reserved = nil
}

func (w *Wizard) matchOneTime(ctx context.Context, d Draft) {
	if w.opts.Matcher == nil || d.CleanerID != nil || d.BookingType == models.BookingRecurring {
		return
	}
	id, err := w.opts.Matcher.MatchCleanerForOneTimeBooking(ctx, d)
	if err != nil {
		log.Printf("⚠️ One-time matching failed for customer %d: %v", w.booker.ID, err)
		return
	}
	if id != nil {
		w.store.update(func(d *Draft) { d.CleanerID = id })
	}
}

func (w *Wizard) checkPayment(ctx context.Context) error {
	if w.opts.Payments == nil {
		return nil
	}
	ok, err := w.opts.Payments.HasPaymentMethod(ctx, w.booker.ID)
	if err != nil {
		return apperrors.RemoteRead("check payment method", err)
	}
	if !ok {
		return apperrors.Validation(string(StepPayment), "payment_method")
	}
	return nil
}

// commitLocked performs the only insert of the wizard. On failure the
// draft and step are left as they were so the customer can retry.
func (w *Wizard) commitLocked(ctx context.Context) error {
	d := w.store.Snapshot()
	if err := ValidateDraft(d); err != nil {
		return err
	}
	reservation, err := d.Reservation(w.booker.ID, w.opts.Location)
	if err != nil {
		return err
	}
	if err := w.creator.Create(ctx, reservation); err != nil {
		log.Printf("❌ Failed to create reservation for customer %d: %v", w.booker.ID, err)
		return apperrors.RemoteWrite("create reservation", err)
	}
	log.Printf("✅ Reservation %d created for customer %d", reservation.ID, w.booker.ID)

	w.store.Reset()
	w.step = StepComplete
	w.visited[StepComplete] = true
	w.reserved = reservation
	for _, hook := range w.opts.Hooks {
		hook(ctx, reservation)
	}
	return nil
}

// Reservation builds the row to insert. Dates and time are interpreted in
// loc; ScheduledAt is the first date.
func (d Draft) Reservation(customerID uint, loc *time.Location) (*models.Reservation, error) {
	dates := d.ScheduleDates()
	if len(dates) == 0 {
		return nil, apperrors.Validation(string(StepConfirmation), "date")
	}
	scheduled, err := time.ParseInLocation(DateLayout+" "+TimeLayout, dates[0]+" "+d.Time, loc)
	if err != nil {
		return nil, apperrors.Validation(string(StepConfirmation), "date", "time")
	}
	bookingType := d.BookingType
	if bookingType == "" {
		bookingType = models.BookingOneTime
	}
	duration := d.DurationHours
	if duration < MinimumHours {
		duration = MinimumHours
	}
	days := make([]string, len(d.RecurringDays))
	for i, day := range d.RecurringDays {
		days[i] = strings.ToLower(strings.TrimSpace(day))
	}

	return &models.Reservation{
		UserID:               customerID,
		ServiceCategory:      d.ServiceCategory,
		BookingType:          bookingType,
		AddressID:            d.AddressID,
		Address:              strings.TrimSpace(d.Address),
		AreaSize:             d.AreaSize,
		Dates:                append([]string(nil), dates...),
		Time:                 d.Time,
		RecurringDays:        days,
		ScheduledAt:          scheduled,
		DurationHours:        duration,
		CleanerID:            d.CleanerID,
		CleanerType:          d.CleanerType,
		Status:               models.ReservationPending,
		Amount:               d.Price,
		IsResident:           d.IsResident,
		ResidentName:         strings.TrimSpace(d.ResidentName),
		ResidentPhone:        d.ResidentPhone.String(),
		DisposalInstructions: d.DisposalInstructions,
		SupplyLocation:       d.SupplyLocation,
		GeneralMessage:       d.GeneralMessage,
		FoodMessage:          d.FoodMessage,
		RecycleMessage:       d.RecycleMessage,
		ReminderEnabled:      d.ReminderEnabled,
	}, nil
}

func withStep(err error, step StepID) error {
	if appErr, ok := apperrors.As(err); ok && appErr.Step == "" {
		appErr.Step = string(step)
	}
	return err
}

func (s StepID) String() string { return string(s) }

// ParseStep validates a step id from a request path.
func ParseStep(s string) (StepID, error) {
	step := StepID(s)
	switch step {
	case StepService, StepKitchen, StepBathroom, StepFridge, StepAddress, StepDateTime,
		StepResident, StepCleaner, StepReminder, StepDisposal, StepCancellation,
		StepPaymentDetails, StepPayment, StepConfirmation, StepComplete:
		return step, nil
	}
	return "", fmt.Errorf("unknown step %q", s)
}
