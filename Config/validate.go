package Config

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

// Validator returns the shared validator with English messages registered.
func Validator() (*validator.Validate, ut.Translator) {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		english := en.New()
		uni := ut.New(english, english)
		translator, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(validate, translator)
	})
	return validate, translator
}

// ValidationError lists every failed field as a readable sentence.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// ValidateStruct runs the shared validator and translates its failures.
func ValidateStruct(v interface{}) error {
	validate, trans := Validator()
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fe.Translate(trans))
	}
	return &ValidationError{Problems: problems}
}
