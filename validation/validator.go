// Package validation checks form documents with go-playground/validator and
// reports problems per field, keyed by the field's json name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"captain/slug"
)

// FieldErrors maps a json field name to a message shown next to that field.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+" "+fe[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has a message.
func (fe FieldErrors) Add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// Err returns fe as an error, or nil when it is empty.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		name, _, _ = strings.Cut(name, ",")
		if name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slug.IsValid(fl.Field().String())
	})

	return &Validator{v: v}
}

// Struct validates s. The returned error, if any, is a FieldErrors.
func (v *Validator) Struct(s any) error {
	fe := v.Fields(s)
	return fe.Err()
}

// Fields validates s and returns the collected messages, possibly empty.
func (v *Validator) Fields(s any) FieldErrors {
	fe := FieldErrors{}

	err := v.v.Struct(s)
	if err == nil {
		return fe
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		fe.Add("_", err.Error())
		return fe
	}

	for _, e := range validationErrs {
		fe.Add(e.Field(), friendlyMessage(e))
	}
	return fe
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "slug":
		return "may only contain lowercase letters, numbers and single hyphens"
	default:
		return "is invalid"
	}
}
