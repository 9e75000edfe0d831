// Package validator wraps go-playground/validator with EN translations.
// Error messages contain the full path of the field, field names are taken from the json/mapstructure tags.
package validator

import (
	"context"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslation "github.com/go-playground/validator/v10/translations/en"

	"github.com/santacall/santacall/internal/pkg/utils/errors"
)

const nestedName = "__nested__"

// nolint: gochecknoglobals
var utcOffsetRegexp = regexp.MustCompile(`^[+-](0\d|1[0-4]):[0-5]\d$`)

type Validator interface {
	Validate(ctx context.Context, value any) error
	ValidateValue(value any, tag string) error
	ValidateCtx(ctx context.Context, value any, tag string, namespace string) error
}

type Rule struct {
	Tag          string
	Func         validator.Func
	FuncCtx      validator.FuncCtx
	ErrorMsg     string
	ErrorMsgFunc func(fe validator.FieldError) string
}

type wrapper struct {
	validator  *validator.Validate
	translator ut.Translator
	rules      map[string]Rule
}

func New(rules ...Rule) Validator {
	v := &wrapper{validator: validator.New(), rules: make(map[string]Rule)}
	v.registerTranslator()
	v.registerTagNameFunc()

	defaultRules := []Rule{
		{
			Tag: "required_not_empty",
			Func: func(fl validator.FieldLevel) bool {
				field := fl.Field()
				switch field.Kind() {
				case reflect.Slice, reflect.Map, reflect.Array:
					return field.Len() > 0
				case reflect.Invalid:
					return false
				default:
					return !field.IsZero()
				}
			},
			ErrorMsg: "{0} is a required field",
		},
		{
			Tag: "utcoffset",
			Func: func(fl validator.FieldLevel) bool {
				return utcOffsetRegexp.MatchString(fl.Field().String())
			},
			ErrorMsg: `{0} must be a UTC offset in the "+HH:MM" format`,
		},
	}

	for _, rule := range append(defaultRules, rules...) {
		v.registerRule(rule)
	}

	return v
}

// Validate a struct, slice or map, nested values are validated too.
func (v *wrapper) Validate(ctx context.Context, value any) error {
	return v.ValidateCtx(ctx, value, "dive", "")
}

// ValidateValue validates a single value using the tag, for example "required,min=1".
func (v *wrapper) ValidateValue(value any, tag string) error {
	return v.ValidateCtx(context.Background(), value, tag, "")
}

// ValidateCtx validates the value, the namespace is used as a prefix of the error messages.
func (v *wrapper) ValidateCtx(ctx context.Context, value any, tag string, namespace string) error {
	var err error
	isStruct := isStructValue(value)
	if isStruct {
		err = v.validator.StructCtx(ctx, value)
	} else {
		err = v.validator.VarCtx(ctx, value, tag)
	}

	var validationErrs validator.ValidationErrors
	switch {
	case err == nil:
		return nil
	case errors.As(err, &validationErrs):
		return v.processErrors(validationErrs, namespace, isStruct)
	default:
		return errors.PrefixError(err, "validation failed")
	}
}

func (v *wrapper) registerTranslator() {
	enLocale := en.New()
	translator, found := ut.New(enLocale, enLocale).GetTranslator("en")
	if !found {
		panic(errors.New("en translator was not found"))
	}
	if err := enTranslation.RegisterDefaultTranslations(v.validator, translator); err != nil {
		panic(errors.Errorf("translator was not registered: %w", err))
	}
	v.translator = translator
}

func (v *wrapper) registerTagNameFunc() {
	v.validator.RegisterTagNameFunc(func(field reflect.StructField) string {
		// Anonymous fields are removed from the error namespace
		if field.Anonymous {
			return nestedName
		}
		for _, tagName := range []string{"json", "mapstructure", "yaml"} {
			if name := strings.SplitN(field.Tag.Get(tagName), ",", 2)[0]; name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})
}

func (v *wrapper) registerRule(rule Rule) {
	var err error
	switch {
	case rule.FuncCtx != nil:
		err = v.validator.RegisterValidationCtx(rule.Tag, rule.FuncCtx)
	case rule.Func != nil:
		err = v.validator.RegisterValidation(rule.Tag, rule.Func)
	default:
		panic(errors.Errorf(`rule "%s" has no validation function`, rule.Tag))
	}
	if err != nil {
		panic(err)
	}

	if rule.ErrorMsg != "" {
		err = v.validator.RegisterTranslation(
			rule.Tag,
			v.translator,
			func(ut ut.Translator) error {
				return ut.Add(rule.Tag, rule.ErrorMsg, true)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				msg, err := ut.T(fe.Tag(), fe.Field())
				if err != nil {
					panic(err)
				}
				return msg
			},
		)
		if err != nil {
			panic(err)
		}
	}

	v.rules[rule.Tag] = rule
}

func (v *wrapper) processErrors(errs validator.ValidationErrors, namespace string, isStruct bool) error {
	result := errors.NewMultiError()
	for _, fe := range errs {
		path := fieldPath(fe.Namespace(), isStruct)
		if namespace != "" {
			path = strings.TrimSuffix(namespace+"."+path, ".")
		}

		var msg string
		if rule, ok := v.rules[fe.Tag()]; ok && rule.ErrorMsgFunc != nil {
			msg = rule.ErrorMsgFunc(fe)
		} else {
			msg = strings.TrimSpace(strings.TrimPrefix(fe.Translate(v.translator), fe.Field()))
		}

		if path == "" {
			result.Append(errors.New(msg))
		} else {
			result.Append(errors.Errorf(`"%s" %s`, path, msg))
		}
	}

	if result.Len() == 1 {
		return result.WrappedErrors()[0]
	}
	return result.ErrorOrNil()
}

// fieldPath removes the struct name and the anonymous fields from the namespace.
func fieldPath(namespace string, isStruct bool) string {
	namespace = strings.ReplaceAll(namespace, nestedName+".", "")
	if isStruct {
		if _, after, found := strings.Cut(namespace, "."); found {
			return after
		}
		return ""
	}
	return namespace
}

func isStructValue(value any) bool {
	t := reflect.TypeOf(value)
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
