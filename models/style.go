package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

type Style string

const (
	StyleFormal     Style = "formal"
	StyleCasual     Style = "casual"
	StyleSemiFormal Style = "semi-formal"
	StyleSporty     Style = "sporty"
)

func (s *Style) Scan(value interface{}) error {
	*s = Style(value.(string))
	return nil
}

func (s Style) Value() (string, error) {
	return string(s), nil
}

func ValidateStyle(fl validator.FieldLevel) bool {
	return ValidateStyleRaw(fl.Field().String())
}

func ValidateStyleRaw(value string) bool {
	matched, _ := regexp.MatchString("^(formal|casual|semi-formal|sporty)$", value)
	return matched
}
