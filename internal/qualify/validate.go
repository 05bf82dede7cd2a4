package qualify

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-router/internal/model"
)

// profileValidator checks merged profiles against their struct tags and
// reports failures by JSON field name.
type profileValidator struct {
	v *validator.Validate
}

func newProfileValidator() *profileValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &profileValidator{v: v}
}

// Profile returns an error wrapping model.ErrInvalidInput when p breaks a
// field constraint.
func (pv *profileValidator) Profile(p model.CustomerProfile) error {
	err := pv.v.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return eris.Wrap(err, "qualify: validate profile")
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = describe(fe)
	}
	return eris.Wrapf(model.ErrInvalidInput, "qualify: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fe.Field() + " must be one of " + fe.Param()
	case "len":
		return fe.Field() + " must have length " + fe.Param()
	case "numeric":
		return fe.Field() + " must be numeric"
	case "gte", "gt", "lte", "max":
		return fe.Field() + " must be " + fe.Tag() + " " + fe.Param()
	default:
		return fe.Field() + " failed " + fe.Tag()
	}
}
