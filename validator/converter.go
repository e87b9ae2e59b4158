// Package validator converts ozzo-validation failures into LayeredError
package validator

import (
	"errors"
	"net/http"

	"github.com/KOMKZ/go-fit-framework/errcode"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrValidationFailed generic validation error (module 1 common, business 1010)
var ErrValidationFailed = errcode.Register(errcode.New(
	1, 1010, "common", "error.common.validation_failed", "validation failed", http.StatusBadRequest,
))

// Validatable anything with a Validate method
type Validatable interface {
	Validate() error
}

// ValidateRequest runs Validate and converts field errors
func ValidateRequest(req Validatable) error {
	return Convert(req.Validate())
}

// Convert turns validation.Errors into a LayeredError carrying a "fields" map.
// Other errors pass through unchanged.
func Convert(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validation.Errors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fields := make(map[string]string, len(validationErrs))
	flatten("", validationErrs, fields)
	return ErrValidationFailed.WithData("fields", fields).Wrap(err)
}

// flatten nested errors become "parent.child" keys
func flatten(prefix string, errs validation.Errors, out map[string]string) {
	for field, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		name := field
		if prefix != "" {
			name = prefix + "." + field
		}
		var nested validation.Errors
		if errors.As(fieldErr, &nested) {
			flatten(name, nested, out)
			continue
		}
		out[name] = fieldErr.Error()
	}
}
