package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

type Season string

const (
	SeasonSummer Season = "summer"
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonFall   Season = "fall"
	SeasonAny    Season = "any"
)

func (s *Season) Scan(value interface{}) error {
	*s = Season(value.(string))
	return nil
}

func (s Season) Value() (string, error) {
	return string(s), nil
}

func ValidateSeason(fl validator.FieldLevel) bool {
	return ValidateSeasonRaw(fl.Field().String())
}

func ValidateSeasonRaw(value string) bool {
	matched, _ := regexp.MatchString("^(summer|winter|spring|fall|any)$", value)
	return matched
}
