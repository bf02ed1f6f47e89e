package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avtopark/rental-service/internal/errs"
	"github.com/avtopark/rental-service/internal/model"
	mock_repository "github.com/avtopark/rental-service/internal/repository/mocks"
	"github.com/avtopark/rental-service/internal/service"
	"github.com/avtopark/rental-service/pkg/auth"
)

var testJWT = auth.Config{Secret: "test-secret", TTL: time.Hour}

func newService(t *testing.T) (*service.Service, *mock_repository.MockRepository) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)
	repo := mock_repository.NewMockRepository(c)
	svc := service.NewService(repo, service.NopEnqueuer(), testJWT, t.TempDir(), zap.NewNop())
	return svc, repo
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTotalDays(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"three full days", date(2024, 3, 1), date(2024, 3, 4), 3},
		{"single day", date(2024, 3, 1), date(2024, 3, 2), 1},
		{"partial day rounds up", date(2024, 3, 1), date(2024, 3, 1).Add(26 * time.Hour), 2},
		{"sub-day still one day", date(2024, 3, 1), date(2024, 3, 1).Add(2 * time.Hour), 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, service.TotalDays(tt.start, tt.end))
		})
	}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name           string
		a1, b1, a2, b2 time.Time
		want           bool
	}{
		{"nested", date(2024, 1, 10), date(2024, 1, 15), date(2024, 1, 12), date(2024, 1, 14), true},
		{"straddles start", date(2024, 1, 10), date(2024, 1, 15), date(2024, 1, 8), date(2024, 1, 11), true},
		{"back to back", date(2024, 1, 10), date(2024, 1, 15), date(2024, 1, 15), date(2024, 1, 18), false},
		{"disjoint", date(2024, 1, 10), date(2024, 1, 15), date(2024, 1, 20), date(2024, 1, 25), false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, service.Overlaps(tt.a1, tt.b1, tt.a2, tt.b2))
		})
	}
}

func TestService_CreateBooking(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	actor := auth.Actor{UserID: "user-1", Role: auth.RoleCustomer}
	vehicle := model.Vehicle{
		ID:          "veh-1",
		Name:        "Toyota Camry",
		Type:        model.VehicleTypeCar,
		PricePerDay: 50,
		Capacity:    5,
		Available:   true,
	}

	type mockBehavior func(r *mock_repository.MockRepository, req model.CreateBookingRequest)

	tests := []struct {
		name         string
		req          model.CreateBookingRequest
		mockBehavior mockBehavior
		wantErr      error
		wantAmount   float64
		wantDays     int
	}{
		{
			name: "ok",
			req: model.CreateBookingRequest{
				VehicleID: vehicle.ID,
				StartDate: date(2024, 3, 1),
				EndDate:   date(2024, 3, 4),
			},
			mockBehavior: func(r *mock_repository.MockRepository, req model.CreateBookingRequest) {
				r.EXPECT().GetVehicle(ctx, vehicle.ID).Return(vehicle, nil)
				r.EXPECT().ActiveBookings(ctx, vehicle.ID).Return([]model.Booking{}, nil)
				r.EXPECT().CreateBooking(ctx, gomock.Any()).
					DoAndReturn(func(_ context.Context, b model.Booking) (model.Booking, error) {
						b.ID = "bk-1"
						return b, nil
					})
			},
			wantDays:   3,
			wantAmount: 150,
		},
		{
			name: "invalid range",
			req: model.CreateBookingRequest{
				VehicleID: vehicle.ID,
				StartDate: date(2024, 3, 4),
				EndDate:   date(2024, 3, 1),
			},
			mockBehavior: func(r *mock_repository.MockRepository, req model.CreateBookingRequest) {},
			wantErr:      errs.ErrInvalidRange,
		},
		{
			name: "equal dates rejected",
			req: model.CreateBookingRequest{
				VehicleID: vehicle.ID,
				StartDate: date(2024, 3, 1),
				EndDate:   date(2024, 3, 1),
			},
			mockBehavior: func(r *mock_repository.MockRepository, req model.CreateBookingRequest) {},
			wantErr:      errs.ErrInvalidRange,
		},
		{
			name: "vehicle not found",
			req: model.CreateBookingRequest{
				VehicleID: "missing",
				StartDate: date(2024, 3, 1),
				EndDate:   date(2024, 3, 4),
			},
			mockBehavior: func(r *mock_repository.MockRepository, req model.CreateBookingRequest) {
				r.EXPECT().GetVehicle(ctx, "missing").Return(model.Vehicle{}, errs.ErrNotFound)
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name: "vehicle unavailable",
			req: model.CreateBookingRequest{
				VehicleID: vehicle.ID,
				StartDate: date(2024, 3, 1),
				EndDate:   date(2024, 3, 4),
			},
			mockBehavior: func(r *mock_repository.MockRepository, req model.CreateBookingRequest) {
				unavailable := vehicle
				unavailable.Available = false
				r.EXPECT().GetVehicle(ctx, vehicle.ID).Return(unavailable, nil)
			},
			wantErr: errs.ErrVehicleUnavailable,
		},
		{
			name: "date conflict",
			req: model.CreateBookingRequest{
				VehicleID: vehicle.ID,
				StartDate: date(2024, 1, 12),
				EndDate:   date(2024, 1, 14),
			},
			mockBehavior: func(r *mock_repository.MockRepository, req model.CreateBookingRequest) {
				r.EXPECT().GetVehicle(ctx, vehicle.ID).Return(vehicle, nil)
				r.EXPECT().ActiveBookings(ctx, vehicle.ID).Return([]model.Booking{
					{
						ID:        "bk-existing",
						VehicleID: vehicle.ID,
						StartDate: date(2024, 1, 10),
						EndDate:   date(2024, 1, 15),
						Status:    model.BookingStatusConfirmed,
					},
				}, nil)
			},
			wantErr: errs.ErrDateConflict,
		},
		{
			name: "back to back allowed",
			req: model.CreateBookingRequest{
				VehicleID: vehicle.ID,
				StartDate: date(2024, 1, 15),
				EndDate:   date(2024, 1, 18),
			},
			mockBehavior: func(r *mock_repository.MockRepository, req model.CreateBookingRequest) {
				r.EXPECT().GetVehicle(ctx, vehicle.ID).Return(vehicle, nil)
				r.EXPECT().ActiveBookings(ctx, vehicle.ID).Return([]model.Booking{
					{
						ID:        "bk-existing",
						VehicleID: vehicle.ID,
						StartDate: date(2024, 1, 10),
						EndDate:   date(2024, 1, 15),
						Status:    model.BookingStatusActive,
					},
				}, nil)
				r.EXPECT().CreateBooking(ctx, gomock.Any()).
					DoAndReturn(func(_ context.Context, b model.Booking) (model.Booking, error) {
						b.ID = "bk-2"
						return b, nil
					})
			},
			wantDays:   3,
			wantAmount: 150,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo := newService(t)
			tt.mockBehavior(repo, tt.req)

			booking, err := svc.CreateBooking(ctx, actor, tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, actor.UserID, booking.UserID)
			require.Equal(t, tt.wantDays, booking.TotalDays)
			require.Equal(t, tt.wantAmount, booking.TotalAmount)
			require.Equal(t, model.BookingStatusPending, booking.Status)
			require.Equal(t, model.PaymentStatusPending, booking.PaymentStatus)
		})
	}
}

func TestService_CheckAvailability(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("invalid range", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.CheckAvailability(ctx, "veh-1", date(2024, 3, 4), date(2024, 3, 1))
		require.ErrorIs(t, err, errs.ErrInvalidRange)
	})

	t.Run("occupied range", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().ActiveBookings(ctx, "veh-1").Return([]model.Booking{
			{StartDate: date(2024, 3, 1), EndDate: date(2024, 3, 5), Status: model.BookingStatusConfirmed},
		}, nil)
		available, err := svc.CheckAvailability(ctx, "veh-1", date(2024, 3, 3), date(2024, 3, 6))
		require.NoError(t, err)
		require.False(t, available)
	})

	t.Run("free range", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().ActiveBookings(ctx, "veh-1").Return([]model.Booking{
			{StartDate: date(2024, 3, 1), EndDate: date(2024, 3, 5), Status: model.BookingStatusConfirmed},
		}, nil)
		available, err := svc.CheckAvailability(ctx, "veh-1", date(2024, 3, 5), date(2024, 3, 8))
		require.NoError(t, err)
		require.True(t, available)
	})
}

func TestService_CreateVehicle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	admin := auth.Actor{UserID: "adm-1", Role: auth.RoleAdmin}
	customer := auth.Actor{UserID: "user-1", Role: auth.RoleCustomer}

	base := model.CreateVehicleRequest{
		Name:        "Ford Transit",
		Type:        model.VehicleTypeVan,
		Brand:       "Ford",
		Model:       "Transit",
		Year:        2022,
		PricePerDay: 90,
		Capacity:    9,
		Description: "9-seat van",
	}

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().CreateVehicle(ctx, gomock.Any()).
			DoAndReturn(func(_ context.Context, v model.Vehicle) (model.Vehicle, error) {
				v.ID = "veh-1"
				return v, nil
			})
		vehicle, err := svc.CreateVehicle(ctx, admin, base)
		require.NoError(t, err)
		require.True(t, vehicle.Available)
	})

	t.Run("forbidden for customer", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.CreateVehicle(ctx, customer, base)
		require.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("capacity out of bounds", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		req := base
		req.Type = model.VehicleTypeMotorcycle
		req.Capacity = 5
		_, err := svc.CreateVehicle(ctx, admin, req)
		require.ErrorIs(t, err, errs.ErrValidation)
	})
}

func TestService_UpdateBookingStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	admin := auth.Actor{UserID: "adm-1", Role: auth.RoleAdmin}
	customer := auth.Actor{UserID: "user-1", Role: auth.RoleCustomer}
	confirmed := model.BookingStatusConfirmed
	paid := model.PaymentStatusPaid

	t.Run("forbidden for customer", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.UpdateBookingStatus(ctx, customer, "bk-1", model.UpdateBookingStatusRequest{Status: &confirmed})
		require.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("both axes empty", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.UpdateBookingStatus(ctx, admin, "bk-1", model.UpdateBookingStatusRequest{})
		require.ErrorIs(t, err, errs.ErrValidation)
	})

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().UpdateBookingStatus(ctx, "bk-1", &confirmed, &paid).
			Return(model.Booking{ID: "bk-1", Status: confirmed, PaymentStatus: paid}, nil)
		booking, err := svc.UpdateBookingStatus(ctx, admin, "bk-1",
			model.UpdateBookingStatusRequest{Status: &confirmed, PaymentStatus: &paid})
		require.NoError(t, err)
		require.Equal(t, confirmed, booking.Status)
		require.Equal(t, paid, booking.PaymentStatus)
	})
}

func TestService_ListBookings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("customer sees own", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		actor := auth.Actor{UserID: "user-1", Role: auth.RoleCustomer}
		repo.EXPECT().ListBookingsByUser(ctx, "user-1").Return([]model.BookingDetails{}, nil)
		_, err := svc.ListBookings(ctx, actor)
		require.NoError(t, err)
	})

	t.Run("admin sees all", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		actor := auth.Actor{UserID: "adm-1", Role: auth.RoleAdmin}
		repo.EXPECT().ListAllBookings(ctx).Return([]model.BookingDetails{}, nil)
		_, err := svc.ListBookings(ctx, actor)
		require.NoError(t, err)
	})
}

func TestService_GetStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("forbidden for customer", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.GetStats(ctx, auth.Actor{UserID: "user-1", Role: auth.RoleCustomer})
		require.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("assembled", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().CountVehicles(gomock.Any(), false).Return(10, nil)
		repo.EXPECT().CountVehicles(gomock.Any(), true).Return(7, nil)
		repo.EXPECT().CountBookings(gomock.Any(), false).Return(42, nil)
		repo.EXPECT().CountBookings(gomock.Any(), true).Return(5, nil)
		repo.EXPECT().CountCustomers(gomock.Any()).Return(13, nil)
		repo.EXPECT().PaidRevenue(gomock.Any()).Return(1234.5, nil)

		stats, err := svc.GetStats(ctx, auth.Actor{UserID: "adm-1", Role: auth.RoleAdmin})
		require.NoError(t, err)
		require.Equal(t, model.Stats{
			TotalVehicles:     10,
			AvailableVehicles: 7,
			TotalBookings:     42,
			ActiveBookings:    5,
			TotalCustomers:    13,
			TotalRevenue:      1234.5,
		}, stats)
	})
}

func TestService_Login(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().GetUserByEmail(ctx, "nobody@example.com").Return(model.User{}, errs.ErrNotFound)
		_, err := svc.Login(ctx, model.LoginRequest{Email: "nobody@example.com", Password: "password123"})
		require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().GetUserByEmail(ctx, "user@example.com").Return(model.User{
			ID:           "user-1",
			Email:        "user@example.com",
			PasswordHash: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy", // "secret"
		}, nil)
		_, err := svc.Login(ctx, model.LoginRequest{Email: "user@example.com", Password: "not-the-password"})
		require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	})
}

func TestService_RegisterThenLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, repo := newService(t)

	var storedHash string
	repo.EXPECT().CreateUser(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, u model.User) (model.User, error) {
			storedHash = u.PasswordHash
			u.ID = "user-1"
			return u, nil
		})

	resp, err := svc.Register(ctx, model.RegisterRequest{
		Email:    "user@example.com",
		Name:     "Test User",
		Phone:    "+10000000000",
		Password: "password123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, model.RoleCustomer, resp.User.Role)
	require.NotEqual(t, "password123", storedHash)

	claims, err := auth.ParseToken(testJWT, resp.Token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Profile.UserID)
	require.Equal(t, string(model.RoleCustomer), claims.Profile.Role)

	repo.EXPECT().GetUserByEmail(ctx, "user@example.com").
		Return(model.User{ID: "user-1", Email: "user@example.com", Role: model.RoleCustomer, PasswordHash: storedHash}, nil)
	loginResp, err := svc.Login(ctx, model.LoginRequest{Email: "user@example.com", Password: "password123"})
	require.NoError(t, err)
	require.NotEmpty(t, loginResp.Token)
}

// fakeRepo emulates the storage layer's transactional overlap guard so the
// admission path can be raced from multiple goroutines.
type fakeRepo struct {
	mu       sync.Mutex
	vehicle  model.Vehicle
	bookings []model.Booking
}

func (f *fakeRepo) GetVehicle(_ context.Context, id string) (model.Vehicle, error) {
	if id != f.vehicle.ID {
		return model.Vehicle{}, errs.ErrNotFound
	}
	return f.vehicle, nil
}

func (f *fakeRepo) ActiveBookings(_ context.Context, vehicleID string) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.VehicleID == vehicleID && b.Status.Occupying() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateBooking(_ context.Context, booking model.Booking) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		occupying := b.Status.Occupying() || b.Status == model.BookingStatusPending
		if b.VehicleID == booking.VehicleID && occupying &&
			service.Overlaps(booking.StartDate, booking.EndDate, b.StartDate, b.EndDate) {
			return model.Booking{}, errs.ErrDateConflict
		}
	}
	booking.ID = "bk-" + booking.UserID
	f.bookings = append(f.bookings, booking)
	return booking, nil
}

func (f *fakeRepo) CreateUser(context.Context, model.User) (model.User, error) {
	return model.User{}, nil
}
func (f *fakeRepo) GetUserByEmail(context.Context, string) (model.User, error) {
	return model.User{}, errs.ErrNotFound
}
func (f *fakeRepo) GetUserByID(context.Context, string) (model.User, error) {
	return model.User{}, errs.ErrNotFound
}
func (f *fakeRepo) ListVehicles(context.Context, bool) ([]model.Vehicle, error) { return nil, nil }
func (f *fakeRepo) CreateVehicle(context.Context, model.Vehicle) (model.Vehicle, error) {
	return model.Vehicle{}, nil
}
func (f *fakeRepo) DeleteVehicle(context.Context, string) error { return nil }
func (f *fakeRepo) SetVehicleImage(context.Context, string, string) error {
	return nil
}
func (f *fakeRepo) ListBookingsByUser(context.Context, string) ([]model.BookingDetails, error) {
	return nil, nil
}
func (f *fakeRepo) ListAllBookings(context.Context) ([]model.BookingDetails, error) {
	return nil, nil
}
func (f *fakeRepo) UpdateBookingStatus(context.Context, string, *model.BookingStatus, *model.PaymentStatus) (model.Booking, error) {
	return model.Booking{}, errs.ErrNotFound
}
func (f *fakeRepo) CountVehicles(context.Context, bool) (int, error) { return 0, nil }
func (f *fakeRepo) CountBookings(context.Context, bool) (int, error) { return 0, nil }
func (f *fakeRepo) CountCustomers(context.Context) (int, error)      { return 0, nil }
func (f *fakeRepo) PaidRevenue(context.Context) (float64, error)     { return 0, nil }

func TestService_CreateBooking_Concurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := &fakeRepo{
		vehicle: model.Vehicle{ID: "veh-1", PricePerDay: 50, Available: true},
	}
	svc := service.NewService(repo, service.NopEnqueuer(), testJWT, t.TempDir(), zap.NewNop())

	req := model.CreateBookingRequest{
		VehicleID: "veh-1",
		StartDate: date(2024, 5, 1),
		EndDate:   date(2024, 5, 5),
	}

	errsCh := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			actor := auth.Actor{UserID: "user-" + string(rune('a'+i)), Role: auth.RoleCustomer}
			_, err := svc.CreateBooking(ctx, actor, req)
			errsCh <- err
		}()
	}
	wg.Wait()
	close(errsCh)

	var ok, conflict int
	for err := range errsCh {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, errs.ErrDateConflict)
			conflict++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, conflict)
}
