package model

import (
	"time"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type VehicleType string

const (
	VehicleTypeCar        VehicleType = "car"
	VehicleTypeMotorcycle VehicleType = "motorcycle"
	VehicleTypeTruck      VehicleType = "truck"
	VehicleTypeVan        VehicleType = "van"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Occupying reports whether a booking in this status holds the vehicle's
// calendar for conflict checks.
func (s BookingStatus) Occupying() bool {
	return s == BookingStatusConfirmed || s == BookingStatusActive
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	Phone        string    `json:"phone" db:"phone"`
	Role         Role      `json:"role" db:"role"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Role     Role   `json:"role" validate:"omitempty,oneof=customer admin"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
	User      User   `json:"user"`
}

type Vehicle struct {
	ID          string      `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Type        VehicleType `json:"type" db:"type"`
	Brand       string      `json:"brand" db:"brand"`
	Model       string      `json:"model" db:"model"`
	Year        int         `json:"year" db:"year"`
	PricePerDay float64     `json:"pricePerDay" db:"price_per_day"`
	Capacity    int         `json:"capacity" db:"capacity"`
	ImageURL    *string     `json:"imageUrl" db:"image_url"`
	Description string      `json:"description" db:"description"`
	Available   bool        `json:"available" db:"available"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
}

type CreateVehicleRequest struct {
	Name        string      `json:"name" validate:"required"`
	Type        VehicleType `json:"type" validate:"required,oneof=car motorcycle truck van"`
	Brand       string      `json:"brand" validate:"required"`
	Model       string      `json:"model" validate:"required"`
	Year        int         `json:"year" validate:"required,gte=1950,lte=2100"`
	PricePerDay float64     `json:"pricePerDay" validate:"required,gt=0"`
	Capacity    int         `json:"capacity" validate:"required,gt=0"`
	Description string      `json:"description" validate:"required"`
}

type Booking struct {
	ID            string        `json:"id" db:"id"`
	UserID        string        `json:"userId" db:"user_id"`
	VehicleID     string        `json:"vehicleId" db:"vehicle_id"`
	StartDate     time.Time     `json:"startDate" db:"start_date"`
	EndDate       time.Time     `json:"endDate" db:"end_date"`
	TotalDays     int           `json:"totalDays" db:"total_days"`
	TotalAmount   float64       `json:"totalAmount" db:"total_amount"`
	Status        BookingStatus `json:"status" db:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus" db:"payment_status"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
}

type CreateBookingRequest struct {
	VehicleID string    `json:"vehicleId" validate:"required"`
	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required"`
}

// UpdateBookingStatusRequest carries a partial update: either axis may be
// supplied independently.
type UpdateBookingStatusRequest struct {
	Status        *BookingStatus `json:"status" validate:"omitempty,oneof=pending confirmed active completed cancelled"`
	PaymentStatus *PaymentStatus `json:"paymentStatus" validate:"omitempty,oneof=pending paid failed refunded"`
}

// BookingDetails is the admin/customer read model: a booking joined with
// vehicle and requester display fields.
type BookingDetails struct {
	Booking
	UserName    string      `json:"userName" db:"user_name"`
	UserEmail   string      `json:"userEmail" db:"user_email"`
	VehicleName string      `json:"vehicleName" db:"vehicle_name"`
	VehicleType VehicleType `json:"vehicleType" db:"vehicle_type"`
}

type Stats struct {
	TotalVehicles     int     `json:"totalVehicles"`
	AvailableVehicles int     `json:"availableVehicles"`
	TotalBookings     int     `json:"totalBookings"`
	ActiveBookings    int     `json:"activeBookings"`
	TotalCustomers    int     `json:"totalCustomers"`
	TotalRevenue      float64 `json:"totalRevenue"`
}

type Availability struct {
	Available bool `json:"available"`
}

type ImageUploadResponse struct {
	ImageURL string `json:"imageUrl"`
}
