package core

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"paybridge/internal/types"
)

// Validator wraps go-playground/validator and translates its field errors
// into the platform error taxonomy.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// ValidateStruct validates a request payload against its struct tags and
// returns a *types.AppError describing the first failing field, or nil.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"payload is not validatable",
			err,
		)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"validation failed in an unexpected way",
			err,
		)
	}

	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())

	code := types.ErrCodeValidationMissingField
	message := "missing required field: " + field
	switch fe.Tag() {
	case "email":
		code = types.ErrCodeValidationInvalidEmail
		message = "invalid email address"
	case "min", "max", "gt", "gte", "lt", "lte":
		code = types.ErrCodeValidationInvalidAmount
		message = "value out of range for field: " + field
	case "oneof", "url":
		code = types.ErrCodeValidationMissingField
		message = "invalid value for field: " + field
	}

	return types.NewAppError(code, message, nil).WithDetails(map[string]any{
		"field": field,
		"rule":  fe.Tag(),
	})
}
