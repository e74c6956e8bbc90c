// Package validation binds and validates request data.
//
// Requests either validate themselves through struct tags (go-playground/validator)
// or return CustomValidationErrors for checks tags cannot express, such as schema
// validation of a record payload. Both are turned into a 400 *errs.HTTPError with one
// FieldError per problem.
package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/errs"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Validatable is implemented by request types that know how to validate themselves.
type Validatable interface {
	Validate() error
}

// Bindable is implemented by request types that read the request themselves instead of
// relying on echo's struct binder, e.g. because the body may be XML or JSON.
type Bindable interface {
	Bind(c echo.Context) error
}

// CustomValidationError is a validation issue that cannot be expressed via validator tags.
type CustomValidationError struct {
	Field   string
	Message string
}

// CustomValidationErrors is a slice of custom validation errors that satisfies error.
type CustomValidationErrors []CustomValidationError

func (c CustomValidationErrors) Error() string {
	return "Validation failed"
}

// BindAndValidate binds request data into payload and validates it.
//
// It returns a 400 *errs.HTTPError with field-level errors if validation fails.
// Errors returned by a Bindable that already are *errs.HTTPError pass through.
func BindAndValidate(c echo.Context, payload Validatable) error {
	if err := bind(c, payload); err != nil {
		return err
	}

	if msg, fieldErrors := validateStruct(payload); fieldErrors != nil {
		return errs.NewBadRequestError(msg, true, nil, fieldErrors, nil)
	}

	return nil
}

func bind(c echo.Context, payload Validatable) error {
	if b, ok := payload.(Bindable); ok {
		err := b.Bind(c)
		if err == nil {
			return nil
		}
		var httpErr *errs.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		return errs.NewBadRequestError(err.Error(), false, nil, nil, nil)
	}

	if err := c.Bind(payload); err != nil {
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			return errs.NewBadRequestError(fmt.Sprint(echoErr.Message), false, nil, nil, nil)
		}
		return errs.NewBadRequestError(err.Error(), false, nil, nil, nil)
	}
	return nil
}

func validateStruct(v Validatable) (string, []errs.FieldError) {
	if err := v.Validate(); err != nil {
		return extractValidationError(err)
	}
	return "", nil
}

func extractValidationError(err error) (string, []errs.FieldError) {
	var fieldErrors []errs.FieldError

	var customValidationErrors CustomValidationErrors
	if errors.As(err, &customValidationErrors) {
		for _, err := range customValidationErrors {
			fieldErrors = append(fieldErrors, errs.FieldError{
				Field: err.Field,
				Error: err.Message,
			})
		}
		return "Validation failed", fieldErrors
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "Validation failed", []errs.FieldError{{Field: "", Error: err.Error()}}
	}

	for _, err := range validationErrors {
		field := strings.ToLower(err.Field())
		var msg string

		switch err.Tag() {
		case "required":
			msg = "is required"
		case "min":
			if err.Type().Kind() == reflect.String {
				msg = fmt.Sprintf("must be at least %s characters", err.Param())
			} else {
				msg = fmt.Sprintf("must be at least %s", err.Param())
			}
		case "max":
			if err.Type().Kind() == reflect.String {
				msg = fmt.Sprintf("must not exceed %s characters", err.Param())
			} else {
				msg = fmt.Sprintf("must not exceed %s", err.Param())
			}
		case "gt":
			msg = fmt.Sprintf("must be greater than %s", err.Param())
		case "oneof":
			msg = fmt.Sprintf("must be one of: %s", err.Param())
		case "email":
			msg = "must be a valid email address"
		default:
			if err.Param() != "" {
				msg = fmt.Sprintf("%s: %s:%s", field, err.Tag(), err.Param())
			} else {
				msg = fmt.Sprintf("%s: %s", field, err.Tag())
			}
		}

		fieldErrors = append(fieldErrors, errs.FieldError{
			Field: field,
			Error: msg,
		})
	}

	return "Validation failed", fieldErrors
}
