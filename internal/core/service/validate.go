package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
)

var (
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	namePattern  = regexp.MustCompile(`^[A-Za-z ]+$`)
)

// newFlowValidator builds the validator used on flow inputs before any
// network call, with the tags the input structs rely on:
//
//	phone10    — exactly ten digits
//	personname — letters and spaces only
func newFlowValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	return v
}

// checkInput runs struct validation and converts the first failure into a
// *domain.ValidationError so it surfaces inline against its field.
func checkInput(v *validator.Validate, in any) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return &domain.ValidationError{
			Field:  strings.ToLower(ve[0].Field()),
			Reason: fieldReason(ve[0]),
		}
	}
	return err
}

// fieldReason converts a single validator failure into display text.
func fieldReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone10":
		return "must be exactly 10 digits"
	case "personname":
		return "may contain only letters and spaces"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation (%s)", fe.Tag())
	}
}
