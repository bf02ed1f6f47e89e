package handler

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/avtopark/rental-service/internal/errs"
	"github.com/avtopark/rental-service/internal/model"
	"github.com/avtopark/rental-service/pkg/auth"
	"github.com/avtopark/rental-service/pkg/middleware"
	"github.com/avtopark/rental-service/pkg/validate"
)

type Handler struct {
	svc       RentalService
	jwtCfg    auth.Config
	uploadDir string
	log       *zap.Logger
}

func New(svc RentalService, jwtCfg auth.Config, uploadDir string, log *zap.Logger) *Handler {
	return &Handler{
		svc:       svc,
		jwtCfg:    jwtCfg,
		uploadDir: uploadDir,
		log:       log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", middleware.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Static("/uploads", h.uploadDir)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		echomw.RequestLoggerWithConfig(middleware.RequestLoggerConfig()),
		echomw.RequestID(),
		middleware.NewRateLimiter(apiRPS),
	)

	authMW := middleware.JwtAuthentication(h.jwtCfg)

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/auth/me", h.Me, authMW)

	api.GET("/vehicles", h.ListVehicles)
	api.GET("/vehicles/all", h.ListAllVehicles, authMW, middleware.AdminOnly)
	api.POST("/vehicles", h.CreateVehicle, authMW, middleware.AdminOnly)
	api.DELETE("/vehicles/:vehicleId", h.DeleteVehicle, authMW, middleware.AdminOnly)
	api.POST("/vehicles/:vehicleId/image", h.UploadVehicleImage, authMW, middleware.AdminOnly)
	api.GET("/vehicles/:vehicleId/availability", h.CheckAvailability)

	api.POST("/bookings", h.CreateBooking, authMW)
	api.GET("/bookings", h.ListBookings, authMW)
	api.GET("/bookings/all", h.ListAllBookings, authMW, middleware.AdminOnly)
	api.PUT("/bookings/:bookingId/status", h.UpdateBookingStatus, authMW, middleware.AdminOnly)

	api.GET("/dashboard/stats", h.GetStats, authMW, middleware.AdminOnly)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps domain errors onto HTTP status codes.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, errs.ErrDateConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrInvalidRange),
		errors.Is(err, errs.ErrValidation),
		errors.Is(err, errs.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound),
		errors.Is(err, errs.ErrVehicleUnavailable):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Register(c echo.Context) error {
	var req model.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c echo.Context) error {
	var req model.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	user, err := h.svc.CurrentUser(ctx, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) ListVehicles(c echo.Context) error {
	vehicles, err := h.svc.ListVehicles(c.Request().Context(), true)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, vehicles)
}

func (h *Handler) ListAllVehicles(c echo.Context) error {
	vehicles, err := h.svc.ListVehicles(c.Request().Context(), false)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, vehicles)
}

func (h *Handler) CreateVehicle(c echo.Context) error {
	var req model.CreateVehicleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	actor, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	vehicle, err := h.svc.CreateVehicle(ctx, actor, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, vehicle)
}

func (h *Handler) DeleteVehicle(c echo.Context) error {
	vehicleID := c.Param("vehicleId")
	if vehicleID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "vehicleId is empty")
	}
	ctx := c.Request().Context()
	actor, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	if err := h.svc.DeleteVehicle(ctx, actor, vehicleID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UploadVehicleImage(c echo.Context) error {
	vehicleID := c.Param("vehicleId")
	if vehicleID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "vehicleId is empty")
	}
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file is required")
	}
	if ct := fileHeader.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return echo.NewHTTPError(http.StatusBadRequest, "file must be an image")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close() //nolint:errcheck

	ctx := c.Request().Context()
	actor, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	imageURL, err := h.svc.AttachVehicleImage(ctx, actor, vehicleID, filepath.Ext(fileHeader.Filename), src)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, model.ImageUploadResponse{ImageURL: imageURL})
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	vehicleID := c.Param("vehicleId")
	if vehicleID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "vehicleId is empty")
	}
	start, err := time.Parse(time.RFC3339, c.QueryParam("startDate"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "startDate must be RFC3339")
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("endDate"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "endDate must be RFC3339")
	}
	available, err := h.svc.CheckAvailability(c.Request().Context(), vehicleID, start, end)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, model.Availability{Available: available})
}

func (h *Handler) CreateBooking(c echo.Context) error {
	var req model.CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	actor, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	booking, err := h.svc.CreateBooking(ctx, actor, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, booking)
}

func (h *Handler) ListBookings(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookings, err := h.svc.ListBookings(ctx, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, bookings)
}

// ListAllBookings serves the admin view. The service already widens the
// listing for admin actors, so it shares the ListBookings path.
func (h *Handler) ListAllBookings(c echo.Context) error {
	return h.ListBookings(c)
}

func (h *Handler) UpdateBookingStatus(c echo.Context) error {
	bookingID := c.Param("bookingId")
	if bookingID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bookingId is empty")
	}
	var req model.UpdateBookingStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	actor, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	booking, err := h.svc.UpdateBookingStatus(ctx, actor, bookingID, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, booking)
}

func (h *Handler) GetStats(c echo.Context) error {
	ctx := c.Request().Context()
	actor, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	stats, err := h.svc.GetStats(ctx, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
