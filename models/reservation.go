package models

import (
	"time"

	"github.com/lib/pq"
)

type ServiceCategory string

const (
	CategoryGeneral  ServiceCategory = "general"
	CategoryKitchen  ServiceCategory = "kitchen"
	CategoryBathroom ServiceCategory = "bathroom"
	CategoryFridge   ServiceCategory = "fridge"
)

// IsAreaSpecific reports whether the category inserts its own wizard step.
func (c ServiceCategory) IsAreaSpecific() bool {
	switch c {
	case CategoryKitchen, CategoryBathroom, CategoryFridge:
		return true
	default:
		return false
	}
}

func (c ServiceCategory) IsValid() bool {
	return c == CategoryGeneral || c.IsAreaSpecific()
}

type BookingType string

const (
	BookingOneTime   BookingType = "onetime"
	BookingRecurring BookingType = "recurring"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

type Reservation struct {
	ID              uint              `json:"id" gorm:"primaryKey"`
	UserID          uint              `json:"user_id" gorm:"not null;index"`
	ServiceCategory ServiceCategory   `json:"service_category" gorm:"type:varchar(20);not null"`
	BookingType     BookingType       `json:"booking_type" gorm:"type:varchar(20);not null;default:'onetime'"`
	AddressID       *uint             `json:"address_id"`
	Address         string            `json:"address" gorm:"size:500;not null"`
	AreaSize        float64           `json:"area_size" gorm:"type:decimal(8,2)"`
	Dates           pq.StringArray    `json:"dates" gorm:"type:text[];not null"`
	Time            string            `json:"time" gorm:"size:5;not null"`
	RecurringDays   pq.StringArray    `json:"recurring_days" gorm:"type:text[]"`
	ScheduledAt     time.Time         `json:"scheduled_at" gorm:"not null;index"`
	DurationHours   float64           `json:"duration_hours" gorm:"type:decimal(4,1);not null"`
	CleanerID       *uint             `json:"cleaner_id" gorm:"index"`
	CleanerType     string            `json:"cleaner_type" gorm:"size:20"`
	Status          ReservationStatus `json:"status" gorm:"type:varchar(20);default:'pending';check:status IN ('pending','confirmed','completed','cancelled')"`
	Amount          float64           `json:"amount" gorm:"type:decimal(10,2);not null"`

	IsResident    bool   `json:"is_resident"`
	ResidentName  string `json:"resident_name" gorm:"size:100"`
	ResidentPhone string `json:"resident_phone" gorm:"size:20"`

	DisposalInstructions string `json:"disposal_instructions" gorm:"type:text"`
	SupplyLocation       string `json:"supply_location" gorm:"type:text"`
	GeneralMessage       string `json:"general_message" gorm:"type:text"`
	FoodMessage          string `json:"food_message" gorm:"type:text"`
	RecycleMessage       string `json:"recycle_message" gorm:"type:text"`
	ReminderEnabled      bool   `json:"reminder_enabled" gorm:"not null;default:false"`
	CancellationReason   string `json:"cancellation_reason" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	User    User  `json:"-" gorm:"foreignKey:UserID"`
	Cleaner *User `json:"-" gorm:"foreignKey:CleanerID"`
}

// TableName specifies the table name for the Reservation model
func (Reservation) TableName() string {
	return "reservations"
}

func (r *Reservation) IsCancelled() bool {
	return r.Status == ReservationCancelled
}
