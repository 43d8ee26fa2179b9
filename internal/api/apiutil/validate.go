package apiutil

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(sf reflect.StructField) string {
			name := strings.Split(sf.Tag.Get("json"), ",")[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate runs struct tag validation and reports the first failure as a 400.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return HandlerError{Status: http.StatusBadRequest, Message: fieldMessage(fieldErrs[0]), Err: err}
	}
	return HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
}

// ValidateVar validates a single value against a tag expression.
func ValidateVar(field string, value any, tag string) error {
	if err := validatorInstance().Var(value, tag); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return HandlerError{Status: http.StatusBadRequest, Message: strings.TrimSpace(field + " " + reason(fe.Tag(), fe.Param(), fe.Kind())), Err: err}
		}
		return HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	if ns := fe.Namespace(); strings.Count(ns, ".") > 1 {
		name = ns[strings.Index(ns, ".")+1:]
	}
	return name + " " + reason(fe.Tag(), fe.Param(), fe.Kind())
}

func reason(tag, param string, kind reflect.Kind) string {
	sized := kind == reflect.String || kind == reflect.Slice || kind == reflect.Map
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if kind == reflect.String {
			return fmt.Sprintf("must be at least %s characters", param)
		}
		if sized {
			return fmt.Sprintf("must contain at least %s items", param)
		}
		return "must be at least " + param
	case "max":
		if kind == reflect.String {
			return fmt.Sprintf("must be at most %s characters", param)
		}
		if sized {
			return fmt.Sprintf("must contain at most %s items", param)
		}
		return "must be at most " + param
	case "gt":
		return "must be greater than " + param
	case "gte":
		return "must be at least " + param
	case "lte":
		return "must be at most " + param
	case "len":
		return fmt.Sprintf("must be exactly %s characters", param)
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(param), ", ")
	case "numeric":
		return "must contain only digits"
	case "iso4217":
		return "must be an ISO 4217 currency code"
	case "eqfield":
		return "must match " + param
	case "uuid", "uuid4":
		return "must be a valid id"
	}
	return "is invalid"
}
