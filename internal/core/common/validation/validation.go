package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	errors "github.com/frahmantamala/docflow/internal"
)

type ValidatorFunc func(interface{}) *errors.ValidationError

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

// ValidationBuilder collects every failing field instead of stopping at the first.
type ValidationBuilder struct {
	fields []*FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := &FieldValidator{FieldName: name, Value: value}
	v.fields = append(v.fields, fv)
	return fv
}

func (fv *FieldValidator) fail(message string, code errors.ErrorCode) *errors.ValidationError {
	return &errors.ValidationError{Field: fv.FieldName, Message: message, Code: string(code)}
}

func (fv *FieldValidator) add(f ValidatorFunc) *FieldValidator {
	fv.Validators = append(fv.Validators, f)
	return fv
}

// Required rejects blank strings, zero ids and nil pointers.
func (fv *FieldValidator) Required() *FieldValidator {
	return fv.add(func(value interface{}) *errors.ValidationError {
		missing := false
		switch v := value.(type) {
		case string:
			missing = strings.TrimSpace(v) == ""
		case int64:
			missing = v == 0
		case *string:
			missing = v == nil || strings.TrimSpace(*v) == ""
		case *int64:
			missing = v == nil
		}
		if missing {
			return fv.fail(fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
		}
		return nil
	})
}

// Positive rejects ids below one. A nil *int64 passes; pair with Required when it must be set.
func (fv *FieldValidator) Positive() *FieldValidator {
	return fv.add(func(value interface{}) *errors.ValidationError {
		var n int64
		switch v := value.(type) {
		case int64:
			n = v
		case *int64:
			if v == nil {
				return nil
			}
			n = *v
		default:
			return nil
		}
		if n <= 0 {
			return fv.fail(fmt.Sprintf("%s must be positive", fv.FieldName), errors.ErrCodeValidationFailed)
		}
		return nil
	})
}

// MaxLength counts characters, not bytes.
func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	return fv.add(func(value interface{}) *errors.ValidationError {
		if v, ok := value.(string); ok && utf8.RuneCountInString(v) > max {
			return fv.fail(fmt.Sprintf("%s must be at most %d characters", fv.FieldName, max), errors.ErrCodeValidationFailed)
		}
		return nil
	})
}

func (fv *FieldValidator) Email() *FieldValidator {
	return fv.add(func(value interface{}) *errors.ValidationError {
		v, ok := value.(string)
		if !ok {
			return nil
		}
		addr, err := mail.ParseAddress(v)
		if err != nil || addr.Address != v {
			return fv.fail(fmt.Sprintf("%s is invalid", fv.FieldName), errors.ErrCodeValidationFailed)
		}
		return nil
	})
}

// Custom runs check and reports message when it returns false.
func (fv *FieldValidator) Custom(check func(interface{}) bool, message string, code errors.ErrorCode) *FieldValidator {
	return fv.add(func(value interface{}) *errors.ValidationError {
		if !check(value) {
			return fv.fail(message, code)
		}
		return nil
	})
}

// Validate returns nil, or one validation AppError listing every failure.
// Each field reports only its first failure.
func (v *ValidationBuilder) Validate() error {
	var failures []errors.ValidationError
	for _, field := range v.fields {
		for _, validator := range field.Validators {
			if fe := validator(field.Value); fe != nil {
				failures = append(failures, *fe)
				break
			}
		}
	}

	if len(failures) == 0 {
		return nil
	}
	return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
		WithDetails(errors.ValidationErrors{Errors: failures})
}
