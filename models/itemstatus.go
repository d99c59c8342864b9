package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

// ItemStatus is the wardrobe item lifecycle: processing (binary stored,
// description/embedding pending) -> ready (searchable) or failed (excluded
// from search, binary retracted).
type ItemStatus string

const (
	ItemProcessing ItemStatus = "processing"
	ItemReady      ItemStatus = "ready"
	ItemFailed     ItemStatus = "failed"
)

func (s *ItemStatus) Scan(value interface{}) error {
	*s = ItemStatus(value.(string))
	return nil
}

func (s ItemStatus) Value() (string, error) {
	return string(s), nil
}

func ValidateItemStatus(fl validator.FieldLevel) bool {
	return ValidateItemStatusRaw(fl.Field().String())
}

func ValidateItemStatusRaw(value string) bool {
	matched, _ := regexp.MatchString("^(processing|ready|failed)$", value)
	return matched
}
