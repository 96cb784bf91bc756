package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingPaid      BookingStatus = "paid"
	BookingTestMode  BookingStatus = "test_mode"
	BookingCompleted BookingStatus = "completed"
	BookingCanceled  BookingStatus = "canceled"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingPending, BookingPaid, BookingTestMode, BookingCompleted, BookingCanceled:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

// CanTransitionTo reports whether a status change is allowed. Completed and
// canceled are terminal.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingPending:
		return next == BookingPaid || next == BookingTestMode || next == BookingCanceled
	case BookingPaid, BookingTestMode:
		return next == BookingCompleted || next == BookingCanceled
	default:
		return false
	}
}

type VehicleSize string

const (
	SizeSmall      VehicleSize = "small"
	SizeMedium     VehicleSize = "medium"
	SizeLarge      VehicleSize = "large"
	SizeExtraLarge VehicleSize = "xl"
)

func ParseVehicleSize(s string) (VehicleSize, bool) {
	switch VehicleSize(strings.ToLower(s)) {
	case SizeSmall, SizeMedium, SizeLarge, SizeExtraLarge:
		return VehicleSize(strings.ToLower(s)), true
	default:
		return "", false
	}
}

type TruckCategory string

const (
	TruckLight    TruckCategory = "light"
	TruckStandard TruckCategory = "standard"
	TruckHeavy    TruckCategory = "heavy"
	TruckFlatbed  TruckCategory = "flatbed"
)

type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
)

type Booking struct {
	ID             int64         `json:"id"`
	ServiceID      int64         `json:"service_id"`
	ServiceNumber  string        `json:"service_number"`
	Status         BookingStatus `json:"status"`
	ServiceType    string        `json:"service_type"`
	CustomerName   string        `json:"customer_name"`
	CustomerPhone  string        `json:"customer_phone"`
	CustomerEmail  string        `json:"customer_email"`
	VehicleBrand   string        `json:"vehicle_brand"`
	VehicleModel   string        `json:"vehicle_model"`
	VehicleColor   string        `json:"vehicle_color"`
	VehiclePlate   string        `json:"vehicle_plate"`
	VehicleSize    VehicleSize   `json:"vehicle_size"`
	PickupAddress  string        `json:"pickup_address"`
	DropoffAddress string        `json:"dropoff_address"`
	DistanceKm     float64       `json:"distance_km"`
	TruckCategory  TruckCategory `json:"truck_category"`
	TotalCents     int64         `json:"total_cents"`
	PickupAt       time.Time     `json:"pickup_at"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	UserID         *int64        `json:"user_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// SubmitRequest is the customer-facing booking form. DistanceKm comes from
// the maps SDK on the client; the server only prices it.
type SubmitRequest struct {
	ServiceType    string        `json:"service_type"`
	CustomerName   string        `json:"customer_name"`
	CustomerPhone  string        `json:"customer_phone"`
	CustomerEmail  string        `json:"customer_email"`
	VehicleBrand   string        `json:"vehicle_brand"`
	VehicleModel   string        `json:"vehicle_model"`
	VehicleColor   string        `json:"vehicle_color"`
	VehiclePlate   string        `json:"vehicle_plate"`
	VehicleSize    VehicleSize   `json:"vehicle_size"`
	PickupAddress  string        `json:"pickup_address"`
	DropoffAddress string        `json:"dropoff_address"`
	DistanceKm     float64       `json:"distance_km"`
	PickupAt       time.Time     `json:"pickup_at"`
	PaymentMethod  PaymentMethod `json:"payment_method"`
	IntentSecret   string        `json:"payment_intent_secret,omitempty"`
	TestMode       bool          `json:"test_mode,omitempty"`
	UserID         *int64        `json:"-"`
}

type SubmitResult struct {
	BookingID     int64         `json:"booking_id"`
	ServiceID     int64         `json:"service_id"`
	ServiceNumber string        `json:"service_number"`
	Status        BookingStatus `json:"status"`
	TotalCents    int64         `json:"total_cents"`
}

// BookingPatch is the admin-side partial update.
type BookingPatch struct {
	Status         *BookingStatus `json:"status,omitempty"`
	CustomerName   *string        `json:"customer_name,omitempty"`
	CustomerPhone  *string        `json:"customer_phone,omitempty"`
	PickupAddress  *string        `json:"pickup_address,omitempty"`
	DropoffAddress *string        `json:"dropoff_address,omitempty"`
	PickupAt       *time.Time     `json:"pickup_at,omitempty"`
}

type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ServiceSummary struct {
	ID            int64     `json:"id"`
	ServiceNumber string    `json:"service_number"`
	ServiceType   string    `json:"service_type"`
	CreatedAt     time.Time `json:"created_at"`
}

// BookingDetail is a booking joined with its owner and service summaries
// for the admin list.
type BookingDetail struct {
	Booking
	User    *UserSummary   `json:"user,omitempty"`
	Service ServiceSummary `json:"service"`
}

type BookingPage struct {
	Data       []BookingDetail `json:"data"`
	Count      int64           `json:"count"`
	TotalPages int64           `json:"total_pages"`
}

// Business Rules
const (
	PhoneDigits   = 10
	MaxDistanceKm = 1000
)

func (r *SubmitRequest) Normalize() {
	r.ServiceType = strings.TrimSpace(r.ServiceType)
	if r.ServiceType == "" {
		r.ServiceType = "tow"
	}
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerEmail = strings.ToLower(strings.TrimSpace(r.CustomerEmail))
	r.VehicleBrand = strings.TrimSpace(r.VehicleBrand)
	r.VehicleModel = strings.TrimSpace(r.VehicleModel)
	r.VehicleColor = strings.TrimSpace(r.VehicleColor)
	r.VehiclePlate = strings.ToUpper(strings.TrimSpace(r.VehiclePlate))
	r.VehicleSize = VehicleSize(strings.ToLower(strings.TrimSpace(string(r.VehicleSize))))
	r.PickupAddress = strings.TrimSpace(r.PickupAddress)
	r.DropoffAddress = strings.TrimSpace(r.DropoffAddress)
	if r.PaymentMethod == "" {
		r.PaymentMethod = PaymentCard
	}
}

// Validate checks the form before any pricing, payment, or store call.
func (r *SubmitRequest) Validate() error {
	if err := r.ValidateDetails(); err != nil {
		return err
	}
	if !r.TestMode && r.IntentSecret == "" {
		return ValidationError{Field: "payment_intent_secret", Msg: "payment intent is required"}
	}
	return nil
}

// ValidateDetails runs every check except the payment intent requirement.
// Phone bookings entered by the dispatch desk have no intent yet.
func (r *SubmitRequest) ValidateDetails() error {
	if r.CustomerName == "" {
		return ValidationError{Field: "customer_name", Msg: "name is required"}
	}
	if !isValidBookingPhone(r.CustomerPhone) {
		return ValidationError{Field: "customer_phone", Msg: "phone must contain exactly 10 digits"}
	}
	if r.PickupAddress == "" {
		return ValidationError{Field: "pickup_address", Msg: "pickup address is required"}
	}
	if r.DropoffAddress == "" {
		return ValidationError{Field: "dropoff_address", Msg: "dropoff address is required"}
	}
	if r.VehicleSize == "" {
		return ValidationError{Field: "vehicle_size", Msg: "vehicle size is required"}
	}
	if r.DistanceKm <= 0 {
		return ValidationError{Field: "distance_km", Msg: "distance must be positive"}
	}
	if r.DistanceKm > MaxDistanceKm {
		return ValidationError{Field: "distance_km", Msg: "distance exceeds service range"}
	}
	if !r.PickupAt.After(time.Now()) {
		return ValidationError{Field: "pickup_at", Msg: "pickup time must be in the future"}
	}
	if r.PaymentMethod != PaymentCard {
		return ValidationError{Field: "payment_method", Msg: "unsupported payment method"}
	}
	return nil
}

// Validate checks a patch against the booking it would modify.
func (p BookingPatch) Validate(current *Booking) error {
	if p.Status != nil {
		status, ok := ParseBookingStatus(string(*p.Status))
		if !ok {
			return ValidationError{Field: "status", Msg: "unknown status"}
		}
		if !current.Status.CanTransitionTo(status) {
			return ConflictError{
				Resource: "booking",
				Msg:      fmt.Sprintf("cannot move from %s to %s", current.Status, status),
			}
		}
	}
	if p.CustomerName != nil && strings.TrimSpace(*p.CustomerName) == "" {
		return ValidationError{Field: "customer_name", Msg: "name is required"}
	}
	if p.CustomerPhone != nil && !isValidBookingPhone(*p.CustomerPhone) {
		return ValidationError{Field: "customer_phone", Msg: "phone must contain exactly 10 digits"}
	}
	if p.PickupAddress != nil && strings.TrimSpace(*p.PickupAddress) == "" {
		return ValidationError{Field: "pickup_address", Msg: "pickup address is required"}
	}
	if p.DropoffAddress != nil && strings.TrimSpace(*p.DropoffAddress) == "" {
		return ValidationError{Field: "dropoff_address", Msg: "dropoff address is required"}
	}
	if p.PickupAt != nil && p.PickupAt.Before(time.Now()) {
		return ValidationError{Field: "pickup_at", Msg: "pickup time must be in the future"}
	}
	return nil
}

// IsUserOwner checks if the given user ID owns this booking
func (b *Booking) IsUserOwner(userID int64) bool {
	return b.UserID != nil && *b.UserID == userID
}

func isValidBookingPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '+' || r == '.':
			// formatting only
		default:
			return false
		}
	}
	return digits == PhoneDigits
}

// FormatUSD renders cents as a dollar string, "$90.00".
func FormatUSD(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
