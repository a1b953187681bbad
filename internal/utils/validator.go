package utils

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jaiguru/astro-remedy/internal/models"
)

// ValidationError describes one failed field
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// RegisterValidators adds the enum validators used by request DTOs
func RegisterValidators(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"consultation_type": func(fl validator.FieldLevel) bool {
			return models.ConsultationType(fl.Field().String()).Valid()
		},
		"consultation_status": func(fl validator.FieldLevel) bool {
			return models.ConsultationStatus(fl.Field().String()).Valid()
		},
		"message_type": func(fl validator.FieldLevel) bool {
			return models.MessageType(fl.Field().String()).Valid()
		},
		"payment_status": func(fl validator.FieldLevel) bool {
			switch models.PaymentStatus(fl.Field().String()) {
			case models.PaymentStatusPending, models.PaymentStatusPaid,
				models.PaymentStatusFailed, models.PaymentStatusRefunded:
				return true
			}
			return false
		},
	}

	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// FormatValidationErrors flattens validator errors for API responses
func FormatValidationErrors(err error) []ValidationError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}

	out := make([]ValidationError, len(ve))
	for i, fe := range ve {
		out[i] = ValidationError{Field: fe.Field(), Tag: fe.Tag()}
		switch fe.Tag() {
		case "required":
			out[i].Message = fmt.Sprintf("%s is required", fe.Field())
		case "gt", "min":
			out[i].Message = fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
		default:
			out[i].Message = fmt.Sprintf("%s is not a valid %s", fe.Field(), fe.Tag())
		}
	}
	return out
}
