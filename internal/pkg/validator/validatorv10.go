package validator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/samber/lo"
)

// Validator validates structs.
type Validator interface {
	Validate(data any) error
}

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("translator not found")

// V10ValidationError maps snake_case field names to translated messages.
type V10ValidationError map[string]string

func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	//nolint:errcheck // a map[string]string always marshals
	b, _ := json.Marshal(map[string]string(vs))
	return string(b)
}

// Values returns the field error map.
func (vs V10ValidationError) Values() map[string]string {
	return vs
}

// rule is a custom tag with its English message. {0} is the field name.
type rule struct {
	tag     string
	message string
	fn      validator.Func
}

var customRules = []rule{
	{
		// required lets whitespace-only strings through
		tag:     "notblank",
		message: "{0} must not be blank",
		fn: func(fl validator.FieldLevel) bool {
			s, ok := fl.Field().Interface().(string)
			return ok && strings.TrimSpace(s) != ""
		},
	},
}

// V10Validator implements Validator using go-playground/validator v10.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewV10Validator returns a validator that reports fields by their json name
// with English messages.
func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	enLang := en.New()
	enTrans, ok := ut.New(enLang, enLang).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}

	for _, r := range customRules {
		if err := register(validate, enTrans, r); err != nil {
			return nil, err
		}
	}

	return &V10Validator{validate: validate, translator: enTrans}, nil
}

func register(validate *validator.Validate, trans ut.Translator, r rule) error {
	if err := validate.RegisterValidation(r.tag, r.fn); err != nil {
		return err
	}

	return validate.RegisterTranslation(r.tag, trans,
		func(t ut.Translator) error {
			return t.Add(r.tag, r.message, false)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(fe.Tag(), fe.Field())
			if err != nil {
				slog.Warn("error translating validation message", "tag", fe.Tag(), "error", err)
				return fe.Error()
			}
			return msg
		},
	)
}

// Validate returns a V10ValidationError when data violates its tags, or the
// underlying error when data cannot be validated at all.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	return V10ValidationError(lo.SliceToMap(fieldErrs, func(fe validator.FieldError) (string, string) {
		return lo.SnakeCase(fe.Field()), fe.Translate(v.translator)
	}))
}
