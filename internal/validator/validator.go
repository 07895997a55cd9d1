package validator

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
)

var global *validator.Validate

const (
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldNotAllowed    = "Field has an unsupported value"
	ErrUnknownValidation  = "Unknown validation error"
)

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

// Validate returns a *domain.ValidationError for the first failing field.
func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	vErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(vErrors) == 0 {
		return &domain.ValidationError{Message: err.Error()}
	}
	ve := vErrors[0]
	return &domain.ValidationError{Field: ve.Field(), Message: message(ve)}
}

func message(ve validator.FieldError) string {
	switch ve.Field() {
	case "itemsDescription":
		if ve.Tag() == "max" {
			return "Items description must be 500 characters or less."
		}
	case "agreeToRules":
		return "You must agree to follow all vendor rules and park regulations."
	case "bringOwnSupplies":
		return "You must acknowledge bringing your own tables, blankets, and supplies."
	}
	switch ve.Tag() {
	case "required":
		return ErrFieldRequired
	case "max":
		return ErrFieldExceedsMaxLen
	case "oneof":
		return ErrFieldNotAllowed
	}
	return ErrUnknownValidation
}
