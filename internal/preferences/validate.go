package preferences

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"dancetonight/internal/models"
)

// NewValidator returns a validator that knows the filter vocabularies.
func NewValidator() *validator.Validate {
	v := validator.New()
	mustRegister(v, "dancestyle", func(fl validator.FieldLevel) bool {
		return vocabContains(models.DanceStyles, fl.Field().String())
	})
	mustRegister(v, "eventtype", func(fl validator.FieldLevel) bool {
		return vocabContains(models.EventTypes, fl.Field().String())
	})
	mustRegister(v, "skilllevel", func(fl validator.FieldLevel) bool {
		return vocabContains(models.SkillLevels, fl.Field().String())
	})
	mustRegister(v, "costcategory", func(fl validator.FieldLevel) bool {
		return vocabContains(models.CostCategories, fl.Field().String())
	})
	mustRegister(v, "filterdate", func(fl validator.FieldLevel) bool {
		return models.IsFilterDate(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

func vocabContains[T ~string](vocab []T, value string) bool {
	for _, v := range vocab {
		if string(v) == value {
			return true
		}
	}
	return false
}

// Describe renders validation errors as "field: rule" pairs.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, ", ")
}
