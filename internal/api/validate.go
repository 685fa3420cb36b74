package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alecgard/mergeflow/internal/domain"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads the JSON body into v and runs its validate tags. Failures
// come back as domain validation errors.
func decode(r *http.Request, v any) error {
	if err := readJSON(r, v); err != nil {
		return domain.Validationf("failed to parse request body")
	}
	if err := validate.Struct(v); err != nil {
		return domain.Validationf("%s", describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "oneof":
			msgs = append(msgs, field+" must be one of "+fe.Param())
		case "uuid":
			msgs = append(msgs, field+" must be a valid id")
		case "min":
			msgs = append(msgs, field+" must have at least "+fe.Param()+" entries")
		case "max":
			msgs = append(msgs, field+" must have at most "+fe.Param()+" entries")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, ", ")
}
