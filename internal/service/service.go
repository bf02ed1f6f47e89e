package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/avtopark/rental-service/internal/errs"
	"github.com/avtopark/rental-service/internal/model"
	"github.com/avtopark/rental-service/internal/repository"
	"github.com/avtopark/rental-service/pkg/auth"
	"github.com/avtopark/rental-service/pkg/kafka"
)

type Service struct {
	log       *zap.Logger
	repo      repository.Repository
	queue     Enqueuer
	jwt       auth.Config
	uploadDir string
}

func NewService(repo repository.Repository, queue Enqueuer, jwtCfg auth.Config, uploadDir string, log *zap.Logger) *Service {
	return &Service{
		log:       log,
		repo:      repo,
		queue:     queue,
		jwt:       jwtCfg,
		uploadDir: uploadDir,
	}
}

// TotalDays returns the rental duration in whole days under half-open
// [start, end) semantics, rounding partial days up. Minimum is one day.
func TotalDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// Overlaps reports whether the half-open intervals [a1, b1) and [a2, b2)
// intersect.
func Overlaps(a1, b1, a2, b2 time.Time) bool {
	return a1.Before(b2) && a2.Before(b1)
}

func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error) {
	role := req.Role
	if role == "" {
		role = model.RoleCustomer
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.AuthResponse{}, err
	}
	user, err := s.repo.CreateUser(ctx, model.User{
		Email:        req.Email,
		Name:         req.Name,
		Phone:        req.Phone,
		Role:         role,
		PasswordHash: string(hash),
	})
	if err != nil {
		return model.AuthResponse{}, err
	}
	return s.authResponse(user)
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.AuthResponse{}, errs.ErrInvalidCredentials
		}
		return model.AuthResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return model.AuthResponse{}, errs.ErrInvalidCredentials
	}
	return s.authResponse(user)
}

func (s *Service) authResponse(user model.User) (model.AuthResponse, error) {
	token, expiresAt, err := auth.NewToken(s.jwt, user.ID, string(user.Role))
	if err != nil {
		return model.AuthResponse{}, err
	}
	return model.AuthResponse{
		Token:     token,
		ExpiresIn: expiresAt.Unix(),
		User:      user,
	}, nil
}

func (s *Service) CurrentUser(ctx context.Context, actor auth.Actor) (model.User, error) {
	return s.repo.GetUserByID(ctx, actor.UserID)
}

var capacityBounds = map[model.VehicleType][2]int{
	model.VehicleTypeCar:        {2, 8},
	model.VehicleTypeMotorcycle: {1, 2},
	model.VehicleTypeTruck:      {2, 6},
	model.VehicleTypeVan:        {7, 15},
}

func (s *Service) ListVehicles(ctx context.Context, onlyAvailable bool) ([]model.Vehicle, error) {
	return s.repo.ListVehicles(ctx, onlyAvailable)
}

func (s *Service) CreateVehicle(ctx context.Context, actor auth.Actor, req model.CreateVehicleRequest) (model.Vehicle, error) {
	if !actor.IsAdmin() {
		return model.Vehicle{}, errs.ErrForbidden
	}
	bounds, ok := capacityBounds[req.Type]
	if !ok {
		return model.Vehicle{}, errors.Wrapf(errs.ErrValidation, "unknown vehicle type %q", req.Type)
	}
	if req.Capacity < bounds[0] || req.Capacity > bounds[1] {
		return model.Vehicle{}, errors.Wrapf(errs.ErrValidation,
			"capacity for %s must be within [%d, %d]", req.Type, bounds[0], bounds[1])
	}
	return s.repo.CreateVehicle(ctx, model.Vehicle{
		Name:        req.Name,
		Type:        req.Type,
		Brand:       req.Brand,
		Model:       req.Model,
		Year:        req.Year,
		PricePerDay: req.PricePerDay,
		Capacity:    req.Capacity,
		Description: req.Description,
		Available:   true,
	})
}

func (s *Service) DeleteVehicle(ctx context.Context, actor auth.Actor, id string) error {
	if !actor.IsAdmin() {
		return errs.ErrForbidden
	}
	return s.repo.DeleteVehicle(ctx, id)
}

// AttachVehicleImage stores the uploaded image under the uploads directory
// and records its public URL on the vehicle.
func (s *Service) AttachVehicleImage(ctx context.Context, actor auth.Actor, vehicleID, ext string, src io.Reader) (string, error) {
	if !actor.IsAdmin() {
		return "", errs.ErrForbidden
	}
	if _, err := s.repo.GetVehicle(ctx, vehicleID); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s_%s%s", vehicleID, uuid.NewString(), ext)
	dst, err := os.Create(filepath.Join(s.uploadDir, filename))
	if err != nil {
		return "", err
	}
	defer dst.Close() //nolint:errcheck
	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	imageURL := "/uploads/" + filename
	if err := s.repo.SetVehicleImage(ctx, vehicleID, imageURL); err != nil {
		return "", err
	}
	return imageURL, nil
}

// CheckAvailability probes whether the requested range is free of
// calendar-occupying bookings.
func (s *Service) CheckAvailability(ctx context.Context, vehicleID string, start, end time.Time) (bool, error) {
	if !end.After(start) {
		return false, errs.ErrInvalidRange
	}
	active, err := s.repo.ActiveBookings(ctx, vehicleID)
	if err != nil {
		return false, err
	}
	for _, b := range active {
		if Overlaps(start, end, b.StartDate, b.EndDate) {
			return false, nil
		}
	}
	return true, nil
}

// CreateBooking admits a booking request: validates the range, prices the
// rental against the vehicle's current rate, rejects overlaps with
// calendar-occupying bookings and persists the record as pending/pending.
// The repository re-validates inside its transaction, so the in-memory
// check here is advisory, not authoritative.
func (s *Service) CreateBooking(ctx context.Context, actor auth.Actor, req model.CreateBookingRequest) (model.Booking, error) {
	if !req.EndDate.After(req.StartDate) {
		return model.Booking{}, errs.ErrInvalidRange
	}
	vehicle, err := s.repo.GetVehicle(ctx, req.VehicleID)
	if err != nil {
		return model.Booking{}, err
	}
	if !vehicle.Available {
		return model.Booking{}, errs.ErrVehicleUnavailable
	}

	active, err := s.repo.ActiveBookings(ctx, req.VehicleID)
	if err != nil {
		return model.Booking{}, err
	}
	for _, b := range active {
		if Overlaps(req.StartDate, req.EndDate, b.StartDate, b.EndDate) {
			return model.Booking{}, errs.ErrDateConflict
		}
	}

	totalDays := TotalDays(req.StartDate, req.EndDate)
	booking, err := s.repo.CreateBooking(ctx, model.Booking{
		UserID:        actor.UserID,
		VehicleID:     req.VehicleID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		TotalDays:     totalDays,
		TotalAmount:   float64(totalDays) * vehicle.PricePerDay,
		Status:        model.BookingStatusPending,
		PaymentStatus: model.PaymentStatusPending,
	})
	if err != nil {
		return model.Booking{}, err
	}

	s.publish(kafka.EventBookingCreated, booking)
	return booking, nil
}

func (s *Service) ListBookings(ctx context.Context, actor auth.Actor) ([]model.BookingDetails, error) {
	if actor.IsAdmin() {
		return s.repo.ListAllBookings(ctx)
	}
	return s.repo.ListBookingsByUser(ctx, actor.UserID)
}

// UpdateBookingStatus is the administrator override: any status value may
// follow any other on either axis, with the storage exclusion constraint as
// the only guard against overlapping confirmed/active bookings.
func (s *Service) UpdateBookingStatus(ctx context.Context, actor auth.Actor, id string, req model.UpdateBookingStatusRequest) (model.Booking, error) {
	if !actor.IsAdmin() {
		return model.Booking{}, errs.ErrForbidden
	}
	if req.Status == nil && req.PaymentStatus == nil {
		return model.Booking{}, errors.Wrap(errs.ErrValidation, "status or paymentStatus is required")
	}
	booking, err := s.repo.UpdateBookingStatus(ctx, id, req.Status, req.PaymentStatus)
	if err != nil {
		return model.Booking{}, err
	}

	s.publish(kafka.EventBookingStatusChanged, booking)
	return booking, nil
}

func (s *Service) GetStats(ctx context.Context, actor auth.Actor) (model.Stats, error) {
	if !actor.IsAdmin() {
		return model.Stats{}, errs.ErrForbidden
	}
	var stats model.Stats
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalVehicles, err = s.repo.CountVehicles(ctx, false)
		return err
	})
	g.Go(func() (err error) {
		stats.AvailableVehicles, err = s.repo.CountVehicles(ctx, true)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalBookings, err = s.repo.CountBookings(ctx, false)
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveBookings, err = s.repo.CountBookings(ctx, true)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalCustomers, err = s.repo.CountCustomers(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalRevenue, err = s.repo.PaidRevenue(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Stats{}, err
	}
	return stats, nil
}

func (s *Service) publish(eventType string, booking model.Booking) {
	event := kafka.EventBooking{
		Timestamp:     time.Now().UTC(),
		EventType:     eventType,
		BookingID:     booking.ID,
		VehicleID:     booking.VehicleID,
		UserID:        booking.UserID,
		Status:        string(booking.Status),
		PaymentStatus: string(booking.PaymentStatus),
		TotalAmount:   booking.TotalAmount,
	}
	if err := s.queue.Enqueue(kafka.BookingTopic, event); err != nil {
		s.log.Warn("enqueue booking event", zap.String("event", eventType), zap.Error(err))
	}
}
