package shared

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidationError converts the first validator failure into kind, naming the field.
func ValidationError(kind error, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", kind, err)
	}
	fe := verrs[0]
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", kind, field)
	case "min":
		return fmt.Errorf("%w: %s must have at least %s entries", kind, field, fe.Param())
	case "max":
		return fmt.Errorf("%w: %s must be at most %s long", kind, field, fe.Param())
	case "gte":
		return fmt.Errorf("%w: %s must be >= %s", kind, field, fe.Param())
	case "lte":
		return fmt.Errorf("%w: %s must be <= %s", kind, field, fe.Param())
	case "oneof":
		return fmt.Errorf("%w: %s must be one of [%s]", kind, field, fe.Param())
	default:
		return fmt.Errorf("%w: %s failed %s", kind, field, fe.Tag())
	}
}

// fieldPath drops the root struct name and embedded Actor from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.TrimPrefix(ns, "Actor.")
}
