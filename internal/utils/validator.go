package utils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/echolingo/listening-service/internal/errors"
	"github.com/echolingo/listening-service/internal/models"
)

// Validator wraps the struct validator with the service's custom rules.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	registerCustomValidators(v)
	return &Validator{validate: v}
}

// Validate checks struct tags and converts failures into the shared
// ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if ve := apperrors.ToValidationErrors(err); len(ve) > 0 {
			return ve
		}
		return err
	}
	return nil
}

func validateQuestionKind(fl validator.FieldLevel) bool {
	return models.QuestionKind(fl.Field().String()) == models.KindListening
}

func validateDifficultyLevel(fl validator.FieldLevel) bool {
	switch models.DifficultyLevel(fl.Field().String()) {
	case models.LevelBeginner, models.LevelIntermediate, models.LevelAdvanced:
		return true
	}
	return false
}

func validateChoiceLabel(fl validator.FieldLevel) bool {
	switch models.ChoiceLabel(fl.Field().String()) {
	case models.ChoiceA, models.ChoiceB, models.ChoiceC, models.ChoiceD:
		return true
	}
	return false
}

func validateMCQStep(fl validator.FieldLevel) bool {
	step := fl.Field().Int()
	return step >= 1 && step <= 3
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_kind", validateQuestionKind)
	validate.RegisterValidation("difficulty_level", validateDifficultyLevel)
	validate.RegisterValidation("choice_label", validateChoiceLabel)
	validate.RegisterValidation("mcq_step", validateMCQStep)

	// Report json field names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
