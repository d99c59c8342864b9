package models

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator"
)

type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

func (l *Platform) Scan(value interface{}) error {
	*l = Platform(value.(string))
	return nil
}

func (l Platform) Value() string {
	return string(l)
}

func ScanPlatform(value string) Platform {
	return Platform(strings.ToLower(value))
}

func ValidatePlatform(fl validator.FieldLevel) bool {
	return ValidatePlatformRaw(fl.Field().String())
}

func ValidatePlatformRaw(value string) bool {
	matched, _ := regexp.MatchString("^(ios|android|web)$", value)
	return matched
}
