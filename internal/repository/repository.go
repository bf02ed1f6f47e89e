package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/avtopark/rental-service/internal/errs"
	"github.com/avtopark/rental-service/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type Repository interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, id string) (model.User, error)

	ListVehicles(ctx context.Context, onlyAvailable bool) ([]model.Vehicle, error)
	GetVehicle(ctx context.Context, id string) (model.Vehicle, error)
	CreateVehicle(ctx context.Context, vehicle model.Vehicle) (model.Vehicle, error)
	DeleteVehicle(ctx context.Context, id string) error
	SetVehicleImage(ctx context.Context, id, imageURL string) error

	CreateBooking(ctx context.Context, booking model.Booking) (model.Booking, error)
	ActiveBookings(ctx context.Context, vehicleID string) ([]model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]model.BookingDetails, error)
	ListAllBookings(ctx context.Context) ([]model.BookingDetails, error)
	UpdateBookingStatus(ctx context.Context, id string, status *model.BookingStatus, paymentStatus *model.PaymentStatus) (model.Booking, error)

	CountVehicles(ctx context.Context, onlyAvailable bool) (int, error)
	CountBookings(ctx context.Context, occupyingOnly bool) (int, error)
	CountCustomers(ctx context.Context) (int, error)
	PaidRevenue(ctx context.Context) (float64, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	usersTableName    = `users`
	vehiclesTableName = `vehicles`
	bookingsTableName = `bookings`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (r *repository) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	q, args, err := qb.Insert(usersTableName).
		Columns("id", "email", "name", "phone", "password_hash", "role").
		Values(uuid.NewString(), user.Email, user.Name, user.Phone, user.PasswordHash, user.Role).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var res model.User
	if err := r.db.GetContext(ctx, &res, q, args...); err != nil {
		if pgErrCode(err) == pgerrcode.UniqueViolation {
			return model.User{}, errs.ErrEmailTaken
		}
		r.log.Error("CreateUser", zap.String("q", q), zap.Error(err))
		return model.User{}, err
	}
	return res, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	q, args, err := qb.Select("id", "email", "name", "phone", "password_hash", "role", "created_at").
		From(usersTableName).
		Where(sq.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) GetUserByID(ctx context.Context, id string) (model.User, error) {
	q, args, err := qb.Select("id", "email", "name", "phone", "password_hash", "role", "created_at").
		From(usersTableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) ListVehicles(ctx context.Context, onlyAvailable bool) ([]model.Vehicle, error) {
	q := qb.Select("id", "name", "type", "brand", "model", "year", "price_per_day",
		"capacity", "image_url", "description", "available", "created_at").
		From(vehiclesTableName).
		OrderBy("created_at desc")
	if onlyAvailable {
		q = q.Where(sq.Eq{"available": true})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	items := make([]model.Vehicle, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	q, args, err := qb.Select("id", "name", "type", "brand", "model", "year", "price_per_day",
		"capacity", "image_url", "description", "available", "created_at").
		From(vehiclesTableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Vehicle{}, err
	}
	var vehicle model.Vehicle
	if err := r.db.GetContext(ctx, &vehicle, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Vehicle{}, errs.ErrNotFound
		}
		return model.Vehicle{}, err
	}
	return vehicle, nil
}

func (r *repository) CreateVehicle(ctx context.Context, vehicle model.Vehicle) (model.Vehicle, error) {
	q, args, err := qb.Insert(vehiclesTableName).
		Columns("id", "name", "type", "brand", "model", "year", "price_per_day", "capacity", "description", "available").
		Values(uuid.NewString(), vehicle.Name, vehicle.Type, vehicle.Brand, vehicle.Model,
			vehicle.Year, vehicle.PricePerDay, vehicle.Capacity, vehicle.Description, true).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Vehicle{}, err
	}
	var res model.Vehicle
	if err := r.db.GetContext(ctx, &res, q, args...); err != nil {
		r.log.Error("CreateVehicle", zap.String("q", q), zap.Error(err))
		return model.Vehicle{}, err
	}
	return res, nil
}

func (r *repository) DeleteVehicle(ctx context.Context, id string) error {
	q, args, err := qb.Delete(vehiclesTableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) SetVehicleImage(ctx context.Context, id, imageURL string) error {
	q, args, err := qb.Update(vehiclesTableName).
		Set("image_url", imageURL).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// CreateBooking inserts a booking inside a transaction that locks the vehicle
// row and re-runs the overlap check, closing the check-then-act window between
// the engine's in-memory check and the insert. The exclusion constraint on the
// bookings table is the final backstop.
func (r *repository) CreateBooking(ctx context.Context, booking model.Booking) (model.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Booking{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	var available bool
	if err := tx.GetContext(ctx, &available,
		`select available from vehicles where id = $1 for update`, booking.VehicleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, errs.ErrNotFound
		}
		return model.Booking{}, err
	}
	if !available {
		return model.Booking{}, errs.ErrVehicleUnavailable
	}

	var conflicts int
	if err := tx.GetContext(ctx, &conflicts, `
		select count(*) from bookings
		where vehicle_id = $1 and status in ('confirmed', 'active')
		  and start_date < $3 and $2 < end_date`,
		booking.VehicleID, booking.StartDate, booking.EndDate); err != nil {
		return model.Booking{}, err
	}
	if conflicts > 0 {
		return model.Booking{}, errs.ErrDateConflict
	}

	q, args, err := qb.Insert(bookingsTableName).
		Columns("id", "user_id", "vehicle_id", "start_date", "end_date",
			"total_days", "total_amount", "status", "payment_status").
		Values(uuid.NewString(), booking.UserID, booking.VehicleID, booking.StartDate, booking.EndDate,
			booking.TotalDays, booking.TotalAmount, booking.Status, booking.PaymentStatus).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Booking{}, err
	}
	var res model.Booking
	if err := tx.GetContext(ctx, &res, q, args...); err != nil {
		if pgErrCode(err) == pgerrcode.ExclusionViolation {
			return model.Booking{}, errs.ErrDateConflict
		}
		r.log.Error("CreateBooking", zap.String("q", q), zap.Error(err))
		return model.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, err
	}
	return res, nil
}

// ActiveBookings returns the bookings that occupy the vehicle's calendar.
func (r *repository) ActiveBookings(ctx context.Context, vehicleID string) ([]model.Booking, error) {
	q, args, err := qb.Select("id", "user_id", "vehicle_id", "start_date", "end_date",
		"total_days", "total_amount", "status", "payment_status", "created_at").
		From(bookingsTableName).
		Where(sq.Eq{"vehicle_id": vehicleID}).
		Where(sq.Eq{"status": []model.BookingStatus{model.BookingStatusConfirmed, model.BookingStatusActive}}).
		ToSql()
	if err != nil {
		return nil, err
	}
	items := make([]model.Booking, 0)
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}

const bookingDetailsColumns = `b.id, b.user_id, b.vehicle_id, b.start_date, b.end_date,
	b.total_days, b.total_amount, b.status, b.payment_status, b.created_at,
	u.name as user_name, u.email as user_email,
	v.name as vehicle_name, v.type as vehicle_type`

func (r *repository) ListBookingsByUser(ctx context.Context, userID string) ([]model.BookingDetails, error) {
	q, args, err := qb.Select(bookingDetailsColumns).
		From(bookingsTableName + " b").
		Join(usersTableName + " u on u.id = b.user_id").
		Join(vehiclesTableName + " v on v.id = b.vehicle_id").
		Where(sq.Eq{"b.user_id": userID}).
		OrderBy("b.created_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	items := make([]model.BookingDetails, 0)
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListAllBookings(ctx context.Context) ([]model.BookingDetails, error) {
	q, args, err := qb.Select(bookingDetailsColumns).
		From(bookingsTableName + " b").
		Join(usersTableName + " u on u.id = b.user_id").
		Join(vehiclesTableName + " v on v.id = b.vehicle_id").
		OrderBy("b.created_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	items := make([]model.BookingDetails, 0)
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateBookingStatus applies a partial update to the status axes. Moving a
// booking into a calendar-occupying status may trip the exclusion constraint,
// which surfaces as a date conflict.
func (r *repository) UpdateBookingStatus(ctx context.Context, id string, status *model.BookingStatus, paymentStatus *model.PaymentStatus) (model.Booking, error) {
	upd := qb.Update(bookingsTableName).Where(sq.Eq{"id": id})
	if status != nil {
		upd = upd.Set("status", *status)
	}
	if paymentStatus != nil {
		upd = upd.Set("payment_status", *paymentStatus)
	}
	q, args, err := upd.Suffix("returning *").ToSql()
	if err != nil {
		return model.Booking{}, err
	}
	var res model.Booking
	if err := r.db.GetContext(ctx, &res, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, errs.ErrNotFound
		}
		if pgErrCode(err) == pgerrcode.ExclusionViolation {
			return model.Booking{}, errs.ErrDateConflict
		}
		r.log.Error("UpdateBookingStatus", zap.String("q", q), zap.Error(err))
		return model.Booking{}, err
	}
	return res, nil
}

func (r *repository) CountVehicles(ctx context.Context, onlyAvailable bool) (int, error) {
	q := qb.Select("count(*)").From(vehiclesTableName)
	if onlyAvailable {
		q = q.Where(sq.Eq{"available": true})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CountBookings(ctx context.Context, occupyingOnly bool) (int, error) {
	q := qb.Select("count(*)").From(bookingsTableName)
	if occupyingOnly {
		q = q.Where(sq.Eq{"status": []model.BookingStatus{model.BookingStatusConfirmed, model.BookingStatusActive}})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CountCustomers(ctx context.Context) (int, error) {
	const q = `select count(distinct id) from users where role = 'customer'`
	var count int
	if err := r.db.GetContext(ctx, &count, q); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) PaidRevenue(ctx context.Context) (float64, error) {
	const q = `select coalesce(sum(total_amount), 0)::float8 from bookings where payment_status = 'paid'`
	var revenue float64
	if err := r.db.GetContext(ctx, &revenue, q); err != nil {
		return 0, err
	}
	return revenue, nil
}
