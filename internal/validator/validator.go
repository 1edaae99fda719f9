package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/quizdesk/attempt-service/internal/errors"
	"github.com/quizdesk/attempt-service/internal/models"
)

// Validator combines struct-tag validation with exam spec sanity checks.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)
	return &Validator{structValidator: structValidator}
}

// Validate validates struct tags, converting failures to the shared
// ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if converted := apperrors.ToValidationErrors(err); len(converted) > 0 {
			return converted
		}
		return err
	}
	return nil
}

// ValidateSpec checks structural invariants a struct tag cannot express:
// unique question ids, options on choice questions, exactly one correct
// option on single-choice.
func (v *Validator) ValidateSpec(spec *models.ExamSpec) apperrors.ValidationErrors {
	var errs apperrors.ValidationErrors

	if strings.TrimSpace(spec.ExamKey) == "" {
		errs = append(errs, *apperrors.NewValidationError("exam_key", "is required", spec.ExamKey))
	}
	if len(spec.Questions) == 0 {
		errs = append(errs, *apperrors.NewValidationError("questions", "must contain at least one question", nil))
	}

	seen := make(map[string]bool, len(spec.Questions))
	for i, q := range spec.Questions {
		field := "questions[" + q.QID + "]"
		if strings.TrimSpace(q.QID) == "" {
			errs = append(errs, *apperrors.NewValidationError(field, "qid is required", i))
			continue
		}
		if seen[q.QID] {
			errs = append(errs, *apperrors.NewValidationError(field, "duplicate qid", q.QID))
		}
		seen[q.QID] = true

		if q.MaxPoints <= 0 {
			errs = append(errs, *apperrors.NewValidationError(field, "max_points must be positive", q.MaxPoints))
		}

		switch q.Type {
		case models.QuestionSingle:
			if len(q.CorrectKeys()) != 1 {
				errs = append(errs, *apperrors.NewValidationError(field, "single-choice question needs exactly one correct option", len(q.CorrectKeys())))
			}
		case models.QuestionMultiple:
			if len(q.Options) < 2 {
				errs = append(errs, *apperrors.NewValidationError(field, "multi-select question needs at least two options", len(q.Options)))
			}
			if len(q.CorrectKeys()) == 0 {
				errs = append(errs, *apperrors.NewValidationError(field, "multi-select question needs at least one correct option", 0))
			}
		case models.QuestionShort:
			if len(q.Options) > 0 {
				errs = append(errs, *apperrors.NewValidationError(field, "short-answer question cannot carry options", len(q.Options)))
			}
		default:
			errs = append(errs, *apperrors.NewValidationError(field, "unknown question type", string(q.Type)))
		}
	}

	return errs
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)

	// Use json tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	switch models.QuestionType(fl.Field().String()) {
	case models.QuestionSingle, models.QuestionMultiple, models.QuestionShort:
		return true
	}
	return false
}
