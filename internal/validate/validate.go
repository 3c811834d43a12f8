package validate

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/courierdash/internal/apperrors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(useJSONTagNames)
	_ = v.RegisterValidation("decimal_gte0", validateDecimalGTE0)
	_ = v.RegisterValidation("coord", validateCoordinate)
	return v
}

// FieldErrors holds user friendly messages keyed by JSON field name
type FieldErrors struct {
	Fields map[string]string
}

func (e *FieldErrors) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return fmt.Sprintf("%v: %s", apperrors.ErrValidation, strings.Join(parts, "; "))
}

func (e *FieldErrors) Unwrap() error {
	return apperrors.ErrValidation
}

// Struct validates v and returns *FieldErrors if any field is invalid
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}

	fields := make(map[string]string, len(errs))
	for _, fieldError := range errs {
		fields[fieldPath(fieldError)] = message(fieldError)
	}
	return &FieldErrors{Fields: fields}
}

// fieldPath drops the top level struct name: "CreateDeliveryRequest.pickup.city" -> "pickup.city"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Value is too short (minimum %s)", fe.Param())
	case "max":
		return fmt.Sprintf("Value is too long (maximum %s)", fe.Param())
	case "email":
		return "Invalid email address"
	case "decimal_gte0":
		return "Must be a non negative amount"
	case "coord":
		return "Invalid coordinate"
	default:
		return "Invalid value"
	}
}

func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func validateDecimalGTE0(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Type() != decimalType {
		return false
	}
	d := field.Interface().(decimal.Decimal)
	return !d.IsNegative()
}

// Coordinates are sent as decimal strings. Param "lat" limits to ±90, anything else to ±180
func validateCoordinate(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	d, err := decimal.NewFromString(value)
	if err != nil {
		return false
	}

	limit := decimal.NewFromInt(180)
	if fl.Param() == "lat" {
		limit = decimal.NewFromInt(90)
	}
	return d.Abs().LessThanOrEqual(limit)
}
