package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &requestValidator{v: v}
}

func (r *requestValidator) Validate(i any) error {
	err := r.v.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &validationError{msg: err.Error()}
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required", "notblank":
		return &validationError{msg: fmt.Sprintf("%s is required", fe.Field())}
	case "max":
		return &validationError{msg: fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())}
	default:
		return &validationError{msg: fmt.Sprintf("%s is invalid", fe.Field())}
	}
}
