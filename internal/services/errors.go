package services

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ServiceError is a failure whose message is safe to show to API clients.
type ServiceError string

func (e ServiceError) Error() string { return string(e) }

const (
	ErrInvalidInput       ServiceError = "invalid input"
	ErrInvalidOTP         ServiceError = "invalid or expired OTP"
	ErrOTPSendFailed      ServiceError = "failed to send OTP"
	ErrInvalidCredentials ServiceError = "invalid email or password"
	ErrWeakPassword       ServiceError = "password must be at least 8 characters with upper and lower case letters, a number and a special character"
	ErrEmailTaken         ServiceError = "an account with this email already exists"
	ErrAccountBlocked     ServiceError = "account is blocked"
	ErrAccountNotFound    ServiceError = "account not found"
	ErrForbidden          ServiceError = "you are not allowed to perform this action"

	ErrInvalidTransition     ServiceError = "invalid booking status transition"
	ErrBookingConflict       ServiceError = "booking was changed by another request, reload and retry"
	ErrServiceUnavailable    ServiceError = "service is not available for booking"
	ErrTechnicianUnavailable ServiceError = "technician is offline"
	ErrNotAssigned           ServiceError = "booking has no technician assigned"

	ErrAlreadyRated ServiceError = "booking has already been rated"
	ErrNotRatable   ServiceError = "only completed bookings can be rated"
)

// invalid wraps a validation failure so callers can match ErrInvalidInput.
func invalid(err error) error {
	if ve, ok := err.(validator.ValidationErrors); ok {
		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidInput, err)
}
