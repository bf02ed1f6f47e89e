package errs

import (
	"errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRange       = errors.New("end date must be strictly after start date")
	ErrDateConflict       = errors.New("vehicle is not available for the selected dates")
	ErrForbidden          = errors.New("admin access required")
	ErrValidation         = errors.New("validation failed")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrVehicleUnavailable = errors.New("vehicle is not available")
)
