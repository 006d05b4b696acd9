package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newValidator json 태그 이름으로 에러 필드를 보고하는 validator
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct validator 에러를 서비스 sentinel 에러로 변환
func validateStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fe := fieldErrs[0]
	switch {
	case fe.Tag() == "required":
		return fmt.Errorf("%w: %s", ErrMissingField, fe.Field())
	case fe.Tag() == "oneof" && fe.Field() == "role":
		return fmt.Errorf("%w: %v", ErrInvalidRole, fe.Value())
	default:
		return fmt.Errorf("%w: %s failed %s", ErrInvalidInput, fe.Field(), fe.Tag())
	}
}
