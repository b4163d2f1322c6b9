// Package val validates request schemas with go-playground/validator and
// reports failures as errx validation errors.
package val

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator() //nolint: gochecknoglobals // validator caches struct metadata

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(getTagName)
	for tag, fn := range customValidations {
		_ = v.RegisterValidation(tag, fn)
	}
	return v
}

func getValidator() *validator.Validate {
	return validate
}

// getTagName reports fields by their json, query or params name, falling back
// to the Go field name.
func getTagName(fld reflect.StructField) string {
	for _, tagName := range []string{"json", "query", "params"} {
		name := strings.SplitN(fld.Tag.Get(tagName), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}
