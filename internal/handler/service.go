package handler

import (
	"context"
	"io"
	"time"

	"github.com/avtopark/rental-service/internal/model"
	"github.com/avtopark/rental-service/internal/service"
	"github.com/avtopark/rental-service/pkg/auth"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type RentalService interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.AuthResponse, error)
	Login(ctx context.Context, req model.LoginRequest) (model.AuthResponse, error)
	CurrentUser(ctx context.Context, actor auth.Actor) (model.User, error)

	ListVehicles(ctx context.Context, onlyAvailable bool) ([]model.Vehicle, error)
	CreateVehicle(ctx context.Context, actor auth.Actor, req model.CreateVehicleRequest) (model.Vehicle, error)
	DeleteVehicle(ctx context.Context, actor auth.Actor, id string) error
	AttachVehicleImage(ctx context.Context, actor auth.Actor, vehicleID, ext string, src io.Reader) (string, error)
	CheckAvailability(ctx context.Context, vehicleID string, start, end time.Time) (bool, error)

	CreateBooking(ctx context.Context, actor auth.Actor, req model.CreateBookingRequest) (model.Booking, error)
	ListBookings(ctx context.Context, actor auth.Actor) ([]model.BookingDetails, error)
	UpdateBookingStatus(ctx context.Context, actor auth.Actor, id string, req model.UpdateBookingStatusRequest) (model.Booking, error)

	GetStats(ctx context.Context, actor auth.Actor) (model.Stats, error)
}

var _ RentalService = (*service.Service)(nil)
