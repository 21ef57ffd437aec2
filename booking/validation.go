package booking

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/models"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStep checks the fields the step needs before the wizard may
// leave it. Steps with no requirements always pass.
func ValidateStep(step StepID, d Draft) error {
	var missing []string
	switch step {
	case StepService:
		if !d.ServiceCategory.IsValid() {
			missing = append(missing, "service_category")
		}
		if d.BookingType != "" && d.BookingType != models.BookingOneTime && d.BookingType != models.BookingRecurring {
			missing = append(missing, "booking_type")
		}
	case StepAddress:
		if strings.TrimSpace(d.Address) == "" {
			missing = append(missing, "address")
		}
		if d.AreaSize <= 0 {
			missing = append(missing, "area")
		}
	case StepDateTime:
		dates := d.ScheduleDates()
		if len(dates) == 0 {
			missing = append(missing, "date")
		}
		for _, date := range dates {
			if _, err := time.Parse(DateLayout, date); err != nil {
				missing = append(missing, "date")
				break
			}
		}
		if _, err := time.Parse(TimeLayout, d.Time); err != nil {
			missing = append(missing, "time")
		}
		if d.BookingType == models.BookingRecurring && len(d.RecurringDays) == 0 {
			missing = append(missing, "recurring_days")
		}
	case StepResident:
		if d.IsResident && strings.TrimSpace(d.ResidentName) == "" {
			missing = append(missing, "resident_name")
		}
	}
	if len(missing) > 0 {
		return apperrors.Validation(string(step), missing...)
	}
	return nil
}

// fullRecord is the shape checked before the single reservation insert.
type fullRecord struct {
	ServiceCategory string   `json:"service_category" validate:"required,oneof=general kitchen bathroom fridge"`
	BookingType     string   `json:"booking_type" validate:"omitempty,oneof=onetime recurring"`
	Address         string   `json:"address" validate:"required"`
	AreaSize        float64  `json:"area" validate:"gt=0"`
	Dates           []string `json:"date" validate:"required,min=1,dive,datetime=2006-01-02"`
	Time            string   `json:"time" validate:"required,datetime=15:04"`
	RecurringDays   []string `json:"recurring_days" validate:"required_if=BookingType recurring,dive,oneof=mon tue wed thu fri sat sun"`
	DurationHours   float64  `json:"duration_hours" validate:"gte=0,lte=12"`
	IsResident      bool     `json:"is_resident"`
	ResidentName    string   `json:"resident_name" validate:"required_if=IsResident true"`
}

// ValidateDraft runs full-record validation and reports every failing
// field under the confirmation step.
func ValidateDraft(d Draft) error {
	days := make([]string, len(d.RecurringDays))
	for i, day := range d.RecurringDays {
		days[i] = strings.ToLower(strings.TrimSpace(day))
	}
	rec := fullRecord{
		ServiceCategory: string(d.ServiceCategory),
		BookingType:     string(d.BookingType),
		Address:         strings.TrimSpace(d.Address),
		AreaSize:        d.AreaSize,
		Dates:           d.ScheduleDates(),
		Time:            d.Time,
		RecurringDays:   days,
		DurationHours:   d.DurationHours,
		IsResident:      d.IsResident,
		ResidentName:    strings.TrimSpace(d.ResidentName),
	}

	err := validate.Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Validation(string(StepConfirmation), "draft")
	}
	seen := make(map[string]bool)
	var fields []string
	for _, fe := range verrs {
		name, _, _ := strings.Cut(fe.Field(), "[")
		if !seen[name] {
			seen[name] = true
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return apperrors.Validation(string(StepConfirmation), fields...)
}
