package server

import (
	"errors"
	"reflect"
	"strings"

	"payment-reconciler/core/reconcile"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so the field in the response matches the request body
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the `validate` tags of a request DTO. The first failing field
// is returned as a *reconcile.ValidationError.
func Validate(dto any) error {
	err := validate.Struct(dto)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &reconcile.ValidationError{Field: "body", Message: err.Error()}
	}

	fe := fieldErrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return &reconcile.ValidationError{Field: field, Message: field + " failed " + fe.Tag()}
}

// ValidationErrors lists every failing field and the tag it failed.
func ValidationErrors(dto any) map[string]string {
	err := validate.Struct(dto)
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}

	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
