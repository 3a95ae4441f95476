package common

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	// 에러 필드명을 json 태그 기준으로
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateStruct checks `validate` tags and returns ValidationErrors keyed by json field name
func ValidateStruct(s interface{}) error {
	err := structValidator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, NewValidationError(fe.Field(), validationMessage(fe)))
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "필수 항목입니다"
	case "oneof":
		return "허용된 값: " + fe.Param()
	case "max":
		return "최대 " + fe.Param() + "자까지 입력할 수 있습니다"
	case "min":
		return "최소 " + fe.Param() + "개 이상이어야 합니다"
	case "url":
		return "URL 형식이 올바르지 않습니다"
	}
	return fe.Tag()
}
