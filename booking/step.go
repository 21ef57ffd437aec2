package booking

import "cleaning-booking-server/models"

type StepID string

const (
	StepService        StepID = "service"
	StepKitchen        StepID = "kitchen"
	StepBathroom       StepID = "bathroom"
	StepFridge         StepID = "fridge"
	StepAddress        StepID = "address"
	StepDateTime       StepID = "datetime"
	StepResident       StepID = "resident-selection"
	StepCleaner        StepID = "cleaner-selection"
	StepReminder       StepID = "reminder"
	StepDisposal       StepID = "disposal"
	StepCancellation   StepID = "cancellation"
	StepPaymentDetails StepID = "payment-details"
	StepPayment        StepID = "payment"
	StepConfirmation   StepID = "confirmation"
	StepComplete       StepID = "complete"
)

// afterAddress is the fixed tail of a full booking.
var afterAddress = []StepID{
	StepDateTime,
	StepResident,
	StepCleaner,
	StepReminder,
	StepDisposal,
	StepCancellation,
	StepPaymentDetails,
	StepPayment,
	StepConfirmation,
	StepComplete,
}

func areaStep(category models.ServiceCategory) (StepID, bool) {
	switch category {
	case models.CategoryKitchen:
		return StepKitchen, true
	case models.CategoryBathroom:
		return StepBathroom, true
	case models.CategoryFridge:
		return StepFridge, true
	default:
		return "", false
	}
}

// DeriveStepSequence returns the ordered steps for the draft. Area-specific
// categories insert their step right after service; area-only bookings end
// right after the address.
func DeriveStepSequence(d Draft) []StepID {
	seq := []StepID{StepService}
	if step, ok := areaStep(d.ServiceCategory); ok {
		seq = append(seq, step)
	}
	seq = append(seq, StepAddress)
	if d.AreaOnly {
		return append(seq, StepComplete)
	}
	return append(seq, afterAddress...)
}

func indexOf(seq []StepID, step StepID) int {
	for i, s := range seq {
		if s == step {
			return i
		}
	}
	return -1
}

// stage groups steps into the screens counted by the progress indicator.
func (s StepID) stage() string {
	switch s {
	case StepKitchen, StepBathroom, StepFridge:
		return "area"
	case StepResident, StepCleaner:
		return "who"
	case StepReminder, StepDisposal, StepCancellation:
		return "instructions"
	case StepPaymentDetails, StepPayment, StepConfirmation:
		return "payment"
	default:
		return string(s)
	}
}

type Progress struct {
	Current int  `json:"current"`
	Total   int  `json:"total"`
	Done    bool `json:"done"`
}

func stages(seq []StepID) []string {
	var out []string
	for _, s := range seq {
		st := s.stage()
		if len(out) == 0 || out[len(out)-1] != st {
			out = append(out, st)
		}
	}
	return out
}

// TotalSteps is 8 when an area-specific step is in the sequence, 7 otherwise.
func TotalSteps(seq []StepID) int {
	return len(stages(seq))
}

// ProgressFor reports where step sits in seq. At complete Current equals
// Total and Done is set.
func ProgressFor(seq []StepID, step StepID) Progress {
	st := stages(seq)
	p := Progress{Total: len(st)}
	for i, name := range st {
		if name == step.stage() {
			p.Current = i + 1
			break
		}
	}
	p.Done = step == StepComplete
	return p
}
