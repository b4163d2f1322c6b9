package val

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/code19m/errx"
	"github.com/go-playground/validator/v10"
)

const (
	CodeValidationFailed = "VALIDATION_FAILED"
)

// ValidateSchema validates a given schema using the go-playground/validator package.
func ValidateSchema(schema any) error {
	err := getValidator().Struct(schema)

	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make(errx.D, len(validationErrors))

		for _, fieldErr := range validationErrors {
			details[fieldPath(fieldErr)] = getFieldErrDescription(fieldErr)
		}

		return errx.New(
			"Validation failed. See details for fields.",
			errx.WithCode(CodeValidationFailed),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(details),
		)
	}
	return errx.New(
		fmt.Sprintf("Unknown validation error: %s", err.Error()),
		errx.WithCode(CodeValidationFailed),
		errx.WithType(errx.T_Validation),
	)
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fieldErr validator.FieldError) string {
	ns := fieldErr.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fieldErr.Field()
}

func getFieldErrDescription(fieldErr validator.FieldError) string {
	param := fieldErr.Param()

	switch tag := fieldErr.Tag(); tag {
	case "required", "required_if":
		return "This field is required"
	case "oneof":
		return "Must be one of: " + strings.Join(strings.Fields(param), ", ")
	case "gte":
		return "Must be greater than or equal to " + param
	case "lte":
		return "Must be less than or equal to " + param
	case "min", "max":
		return sizeDesc(tag, param, fieldErr.Kind())
	case "message_name":
		return "Must be a dotted name such as Entity.action"
	default:
		return fmt.Sprintf("Failed validation: %s", tag)
	}
}

// sizeDesc words min and max by the kind they bound.
func sizeDesc(tag, param string, kind reflect.Kind) string {
	bound := "at least"
	if tag == "max" {
		bound = "at most"
	}

	switch kind { //nolint:exhaustive // numbers fall through to the default
	case reflect.String:
		return fmt.Sprintf("Must be %s %s characters long", bound, param)
	case reflect.Slice, reflect.Array, reflect.Map:
		return fmt.Sprintf("Must contain %s %s items", bound, param)
	default:
		return fmt.Sprintf("Must be %s %s", bound, param)
	}
}
