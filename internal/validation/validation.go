// Package validation wraps go-playground/validator with English messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/at-ishikawa/recipebook/internal/apperror"
)

// New builds a validator whose field names come from the given struct tag.
func New(tagKey string) (*validator.Validate, ut.Translator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get(tagKey), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("notblank", isNotBlank); err != nil {
		return nil, nil, fmt.Errorf("failed to register notblank validation: %w", err)
	}
	if err := validate.RegisterTranslation("notblank", trans, func(ut ut.Translator) error {
		return ut.Add("notblank", "{0} must not be blank", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("notblank", fe.Field())
		return t
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register notblank translation: %w", err)
	}

	return validate, trans, nil
}

func isNotBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return true
		}
		field = field.Elem()
	}
	if field.Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(field.String()) != ""
}

// Validator checks domain inputs and reports failures as apperror.ValidationError.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator returns a Validator keyed on json tags.
func NewValidator() (*Validator, error) {
	validate, trans, err := New("json")
	if err != nil {
		return nil, err
	}
	return &Validator{validate: validate, translator: trans}, nil
}

// MustNewValidator is NewValidator for package-level initialisation.
func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// Struct validates s. A nil return means s is valid.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validate %T: %w", s, err)
	}
	problems := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		problems = append(problems, e.Translate(v.translator))
	}
	return &apperror.ValidationError{Problems: problems}
}
