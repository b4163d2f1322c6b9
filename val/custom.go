package val

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var messageNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

var customValidations = map[string]validator.Func{ //nolint: gochecknoglobals // registration table
	"message_name": func(fl validator.FieldLevel) bool {
		return IsMessageName(fl.Field().String())
	},
}

// IsMessageName reports whether s is a dotted command or event name such as
// "Hotel.bookRoom".
func IsMessageName(s string) bool {
	return messageNameRe.MatchString(s)
}
