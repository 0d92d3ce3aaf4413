package store

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newValidator returns a validator that reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldErrors runs v over payload and collects every violation. prefix is
// prepended to field names (used for "[i]." paths in batch payloads).
func fieldErrors(v *validator.Validate, payload any, prefix string) ([]FieldError, error) {
	err := v.Struct(payload)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   prefix + fe.Field(),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: fieldMessage(prefix+fe.Field(), fe),
		})
	}
	return out, nil
}

func fieldMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "alphanum":
		return fmt.Sprintf("%s must only contain alpha-numeric characters", field)
	case "min":
		return fmt.Sprintf("%s length must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s length must be less than or equal to %s characters long", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// validateInput checks a create payload.
func (s *Store) validateInput(in RideInput) error {
	errs, err := fieldErrors(s.validate, in, "")
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return &ValidationError{Message: "ValidationArrayError", Errors: errs}
	}
	return nil
}

// validateInputs checks every payload of a batch and aggregates violations
// in input order.
func (s *Store) validateInputs(in []RideInput) error {
	var all []FieldError
	for i, item := range in {
		errs, err := fieldErrors(s.validate, item, fmt.Sprintf("[%d].", i))
		if err != nil {
			return err
		}
		all = append(all, errs...)
	}
	if len(all) > 0 {
		return &ValidationError{Message: "ValidationArrayError", Errors: all}
	}
	return nil
}

// validatePatch checks an update payload.
func (s *Store) validatePatch(p RidePatch) error {
	errs, err := fieldErrors(s.validate, p, "")
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return &ValidationError{Message: "ValidationArrayError", Errors: errs}
	}
	return nil
}
