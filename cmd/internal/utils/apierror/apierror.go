package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is what services hand back to routes; routes serialize it
// as-is with Code() as the HTTP status.
type ErrorResponse interface {
	error
	Code() int
}

type SimpleError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (s *SimpleError) Error() string { return s.Message }
func (s *SimpleError) Code() int     { return s.Status }

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

type ValidationError struct {
	Status  int           `json:"status"`
	Message string        `json:"message"`
	Fields  []*FieldError `json:"fields"`
}

func (v *ValidationError) Error() string { return v.Message }
func (v *ValidationError) Code() int     { return v.Status }

func NewSimple(status int, message string) *SimpleError {
	return &SimpleError{Status: status, Message: message}
}

func NewMissingParamError(param string) *SimpleError {
	return NewSimple(http.StatusBadRequest, fmt.Sprintf("Missing required parameter '%s'", param))
}

func NewInvalidParamTypeError(param, kind string) *SimpleError {
	return NewSimple(http.StatusBadRequest, fmt.Sprintf("Parameter '%s' must be of type %s", param, kind))
}

// FromValidationError flattens validator errors into one response. Anything
// that is not a validator.ValidationErrors is reported as a malformed body.
func FromValidationError(err error) ErrorResponse {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return MalformedBodyError
	}

	fields := make([]*FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = &FieldError{
			Field: strings.ToLower(fe.Field()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		}
	}
	return &ValidationError{
		Status:  http.StatusBadRequest,
		Message: "Request validation failed",
		Fields:  fields,
	}
}

var (
	InternalServerError   = NewSimple(http.StatusInternalServerError, "Internal server error")
	MalformedBodyError    = NewSimple(http.StatusBadRequest, "Malformed request body")
	NotFoundError         = NewSimple(http.StatusNotFound, "Resource not found")
	ForbiddenError        = NewSimple(http.StatusForbidden, "You are not allowed to perform this action")
	InvalidAuthTokenError = NewSimple(http.StatusUnauthorized, "Invalid or missing authorization token")

	// Scheduling
	InvalidTimeRangeError  = NewSimple(http.StatusBadRequest, "Start time must be before end time")
	SlotNotAlignedError    = NewSimple(http.StatusBadRequest, "Times must be aligned to 30 minute slots")
	NoAvailableSlotError   = NewSimple(http.StatusBadRequest, "No available slot for the given time.")
	InvalidDateError       = NewSimple(http.StatusBadRequest, "Could not understand date format, expected YYYY-MM-DD")
	InvalidMonthError      = NewSimple(http.StatusBadRequest, "Could not understand month format, expected YYYY-MM")
	NotADoctorError        = NewSimple(http.StatusBadRequest, "Referenced user is not a doctor")
	AppointmentInPastError = NewSimple(http.StatusBadRequest, "Appointments cannot be booked in the past")
	AppointmentQRNotFound  = NewSimple(http.StatusNotFound, "Appointment not found")
	UnknownMedicationError = NewSimple(http.StatusBadRequest, "Referenced medication does not exist")
	LocalIDConflictError   = NewSimple(http.StatusConflict, "local_id already belongs to another record")

	// Users
	UserAlreadyExistsError       = NewSimple(http.StatusConflict, "A user with this email already exists")
	UserAlreadyConfirmedError    = NewSimple(http.StatusConflict, "User is already confirmed")
	DoctorSpecialtyRequiredError = NewSimple(http.StatusBadRequest, "Doctors must register with a specialty")

	// Identity provider
	IDPInvalidPasswordError     = NewSimple(http.StatusBadRequest, "Password does not satisfy the identity provider policy")
	IDPExistingEmailError       = NewSimple(http.StatusConflict, "Email already registered in the identity provider")
	IDPUserNotFoundError        = NewSimple(http.StatusNotFound, "User not found")
	IDPUserNotConfirmedError    = NewSimple(http.StatusForbidden, "User has not confirmed the email address yet")
	IDPCredentialsMismatchError = NewSimple(http.StatusUnauthorized, "Email or password is incorrect")
	IDPConfirmCodeMismatchError = NewSimple(http.StatusBadRequest, "Confirmation code does not match")
	IDPConfirmCodeExpiredError  = NewSimple(http.StatusBadRequest, "Confirmation code has expired")
)
