package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/dispatch-api/internal/model"
)

// RegisterValidators wires the domain enums into gin's binding engine so
// request DTOs can declare them as binding tags. Error messages report
// the json field name, not the Go one.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})

	validations := map[string]validator.Func{
		"specialty": func(fl validator.FieldLevel) bool {
			return model.Specialty(fl.Field().String()).IsValid()
		},
		"consultation_kind": func(fl validator.FieldLevel) bool {
			return model.ConsultationKind(fl.Field().String()).IsValid()
		},
		"availability": func(fl validator.FieldLevel) bool {
			return model.AvailabilityMode(fl.Field().String()).IsValid()
		},
	}
	for tag, fn := range validations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
}
