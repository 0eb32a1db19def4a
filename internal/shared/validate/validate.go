package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/shared/apperr"

	"github.com/go-playground/validator/v10"
)

const serviceTypeTag = "service_type"

var v *validator.Validate

func init() {
	v = validator.New()

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(serviceTypeTag, func(fl validator.FieldLevel) bool {
		switch val := fl.Field().Interface().(type) {
		case domain.ServiceType:
			return val.Valid()
		case string:
			return domain.ServiceType(val).Valid()
		}
		return false
	})
}

// Struct validates s and reports the first failing field as an
// apperr.ValidationError.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.ValidationError{Msg: err.Error()}
	}
	fe := fieldErrs[0]
	return apperr.ValidationError{Field: fe.Field(), Msg: message(fe)}
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case serviceTypeTag:
		return "must be expressway or normal"
	case "gt", "gte":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "latitude", "longitude":
		return "out of range"
	}
	return fmt.Sprintf("failed %s", fe.Tag())
}
