package shape

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidShape is returned for malformed shapes and shape records.
var ErrInvalidShape = errors.New("invalid shape")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	_ = v.RegisterValidation("evenlen", func(fl validator.FieldLevel) bool {
		return fl.Field().Len()%2 == 0
	})

	return v
}

// Validate checks the variant-specific fields of s.
func Validate(s Shape) error {
	if s == nil {
		return fmt.Errorf("%w: nil shape", ErrInvalidShape)
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %s %q: %s", ErrInvalidShape, s.Kind(), ID(s), describe(err))
	}
	return nil
}

// ValidateList validates every shape and checks that ids are unique.
func ValidateList(l List) error {
	seen := make(map[string]struct{}, len(l))
	for i, s := range l {
		if err := Validate(s); err != nil {
			return fmt.Errorf("shape %d: %w", i, err)
		}
		id := ID(s)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidShape, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("field %s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("field %s failed %s", fe.Field(), fe.Tag())
}
