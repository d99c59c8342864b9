package models

import (
	"strings"

	"github.com/go-playground/validator"
)

type Category string

const (
	CategoryShirt      Category = "shirt"
	CategoryPants      Category = "pants"
	CategoryShoes      Category = "shoes"
	CategoryDress      Category = "dress"
	CategoryJacket     Category = "jacket"
	CategoryAccessory  Category = "accessory"
	CategoryKurta      Category = "kurta"
	CategorySaree      Category = "saree"
	CategoryLehenga    Category = "lehenga"
	CategorySherwani   Category = "sherwani"
	CategoryJumpsuit   Category = "jumpsuit"
	CategoryRomper     Category = "romper"
	CategoryFullSuit   Category = "full_suit"
	CategoryFormalSuit Category = "formal_suit"
	CategoryOther      Category = "other"
)

var AllCategories = []Category{
	CategoryShirt, CategoryPants, CategoryShoes, CategoryDress,
	CategoryJacket, CategoryAccessory, CategoryKurta, CategorySaree,
	CategoryLehenga, CategorySherwani, CategoryJumpsuit, CategoryRomper,
	CategoryFullSuit, CategoryFormalSuit, CategoryOther,
}

// Categories that are a full outfit on their own, no composition needed.
var CompleteOutfitCategories = []Category{
	CategoryDress, CategoryKurta, CategorySaree, CategoryLehenga,
	CategorySherwani, CategoryJumpsuit, CategoryRomper,
	CategoryFullSuit, CategoryFormalSuit,
}

var TraditionalCategories = []Category{
	CategoryKurta, CategorySaree, CategoryLehenga, CategorySherwani,
}

func (c *Category) Scan(value interface{}) error {
	*c = Category(value.(string))
	return nil
}

func (c Category) Value() (string, error) {
	return string(c), nil
}

func (c Category) IsCompleteOutfit() bool {
	for _, complete := range CompleteOutfitCategories {
		if c == complete {
			return true
		}
	}
	return false
}

func (c Category) IsTraditional() bool {
	for _, traditional := range TraditionalCategories {
		if c == traditional {
			return true
		}
	}
	return false
}

func ValidateCategory(fl validator.FieldLevel) bool {
	return ValidateCategoryRaw(fl.Field().String())
}

func ValidateCategoryRaw(value string) bool {
	value = strings.ToLower(value)
	for _, category := range AllCategories {
		if value == string(category) {
			return true
		}
	}
	return false
}
