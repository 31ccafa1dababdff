package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"treasury/internal/models"
	"treasury/internal/money"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidPayload = errors.New("invalid payload")

var (
	validate *validator.Validate
	initOnce sync.Once
	initErr  error
)

func instance() (*validator.Validate, error) {
	initOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		rules := map[string]validator.Func{
			"money": func(fl validator.FieldLevel) bool {
				raw := fl.Field().String()
				if raw == "" {
					return true
				}
				_, err := money.ParsePositiveMinor(raw)
				return err == nil
			},
			"expense_category": func(fl validator.FieldLevel) bool {
				return models.ExpenseCategory(fl.Field().String()).Valid()
			},
			"status": func(fl validator.FieldLevel) bool {
				raw := fl.Field().String()
				return raw == "" || models.Status(raw).Valid()
			},
		}
		for tag, fn := range rules {
			if err := v.RegisterValidation(tag, fn); err != nil {
				initErr = fmt.Errorf("register %s: %w", tag, err)
				return
			}
		}
		validate = v
	})
	return validate, initErr
}

// Struct validates payload against its `validate` tags. The returned error
// wraps ErrInvalidPayload and names the first failing field.
func Struct(payload any) error {
	v, err := instance()
	if err != nil {
		return err
	}
	err = v.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return fmt.Errorf("%w: %s", ErrInvalidPayload, describe(fieldErrs[0]))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "money":
		return field + " must be a positive amount with at most two decimals"
	case "expense_category":
		return field + " is not a known expense category"
	case "status":
		return field + " is not a known status"
	case "uuid":
		return field + " must be a UUID"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
