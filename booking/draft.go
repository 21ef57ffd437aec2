// Package booking drives the reservation wizard: the step sequence, the
// in-progress draft and its store, per-step validation, pricing and the
// single commit at confirmation.
package booking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/models"
)

// PhoneNumber accepts a JSON string or a bare JSON number.
type PhoneNumber string

func (p *PhoneNumber) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*p = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = PhoneNumber(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if strings.ContainsAny(n.String(), ".eE-+") {
		return fmt.Errorf("phone number %s is not a digit string", n)
	}
	*p = PhoneNumber(n.String())
	return nil
}

func (p PhoneNumber) String() string { return string(p) }

type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

type Discount struct {
	Code  string       `json:"code"`
	Kind  DiscountKind `json:"kind"`
	Value float64      `json:"value"`
}

// Draft is the reservation being built by one wizard session. It has no
// identity until committed.
type Draft struct {
	ServiceCategory models.ServiceCategory `json:"service_category,omitempty"`
	BookingType     models.BookingType     `json:"booking_type,omitempty"`
	// AreaOnly bookings capture the address and stop.
	AreaOnly bool `json:"area_only,omitempty"`

	AddressID *uint   `json:"address_id,omitempty"`
	Address   string  `json:"address,omitempty"`
	AreaSize  float64 `json:"area,omitempty"`

	Date          string   `json:"date,omitempty"`
	Dates         []string `json:"dates,omitempty"`
	Time          string   `json:"time,omitempty"`
	RecurringDays []string `json:"recurring_days,omitempty"`
	DurationHours float64  `json:"duration_hours,omitempty"`

	IsResident    bool        `json:"is_resident"`
	SameAsBooker  bool        `json:"same_as_booker"`
	ResidentName  string      `json:"resident_name,omitempty"`
	ResidentPhone PhoneNumber `json:"resident_phone,omitempty"`

	RankTier    models.RankTier `json:"rank_tier,omitempty"`
	CleanerID   *uint           `json:"cleaner_id"`
	CleanerType string          `json:"cleaner_type,omitempty"`

	ReminderEnabled      bool   `json:"reminder_enabled"`
	DisposalInstructions string `json:"disposal_instructions,omitempty"`
	SupplyLocation       string `json:"supply_location,omitempty"`
	GeneralMessage       string `json:"general_message,omitempty"`
	FoodMessage          string `json:"food_message,omitempty"`
	RecycleMessage       string `json:"recycle_message,omitempty"`

	Discounts []Discount `json:"discounts,omitempty"`

	// Price is derived by the store and only shown until the server confirms.
	Price float64 `json:"price"`
}

// Patch is a shallow set of draft fields keyed by their JSON names.
type Patch map[string]interface{}

// derivedKeys may be read but never patched.
var derivedKeys = map[string]bool{"price": true}

var draftKeys = jsonKeys(reflect.TypeOf(Draft{}))

func jsonKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}

// IsEmpty reports whether the draft is in its initial state.
func (d Draft) IsEmpty() bool {
	return reflect.DeepEqual(d, Draft{})
}

// ScheduleDates returns every date the reservation covers.
func (d Draft) ScheduleDates() []string {
	if len(d.Dates) > 0 {
		return d.Dates
	}
	if d.Date != "" {
		return []string{d.Date}
	}
	return nil
}

// Clone copies the draft without sharing slices or pointers.
func (d Draft) Clone() Draft {
	c := d
	if d.AddressID != nil {
		v := *d.AddressID
		c.AddressID = &v
	}
	if d.CleanerID != nil {
		v := *d.CleanerID
		c.CleanerID = &v
	}
	c.Dates = append([]string(nil), d.Dates...)
	c.RecurringDays = append([]string(nil), d.RecurringDays...)
	c.Discounts = append([]Discount(nil), d.Discounts...)
	if len(d.Dates) == 0 {
		c.Dates = nil
	}
	if len(d.RecurringDays) == 0 {
		c.RecurringDays = nil
	}
	if len(d.Discounts) == 0 {
		c.Discounts = nil
	}
	return c
}

// Merge returns d with the patch applied; keys present in the patch
// overwrite, everything else is kept. Unknown or derived keys and
// mistyped values are rejected as validation errors naming the key.
func (d Draft) Merge(p Patch) (Draft, error) {
	if len(p) == 0 {
		return d.Clone(), nil
	}
	var bad []string
	for key := range p {
		if !draftKeys[key] || derivedKeys[key] {
			bad = append(bad, key)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return d, apperrors.Validation("", bad...)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return d, apperrors.Validation("", "patch")
	}
	merged := d.Clone()
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&merged); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return d, apperrors.Validation("", typeErr.Field)
		}
		return d, apperrors.Validation("", "patch")
	}
	return merged, nil
}
