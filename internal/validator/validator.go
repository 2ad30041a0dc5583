package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/clinicore/scale-assessment-service/internal/errors"
	"github.com/clinicore/scale-assessment-service/internal/models"
)

// Validator is the main validator instance that combines struct tag
// validation with the clinical response validator.
type Validator struct {
	structValidator   *validator.Validate
	responseValidator *ResponseValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		responseValidator: NewResponseValidator(),
	}
}

// ValidateStruct validates struct tags, mapping failures into the shared
// ValidationErrors type.
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if mapped := apperrors.ToValidationErrors(err); len(mapped) > 0 {
			return mapped
		}
		return err
	}
	return nil
}

// Response returns the response validator
func (v *Validator) Response() *ResponseValidator {
	return v.responseValidator
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("administration_mode", validateAdministrationMode)
	validate.RegisterValidation("assessment_status", validateAssessmentStatus)
	validate.RegisterValidation("response_kind", validateResponseKind)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateAdministrationMode(fl validator.FieldLevel) bool {
	validModes := []models.AdministrationMode{
		models.ModeProfessional,
		models.ModeSelfAdministered,
		models.ModeRemote,
	}

	value := fl.Field().String()
	for _, validMode := range validModes {
		if string(validMode) == value {
			return true
		}
	}
	return false
}

func validateAssessmentStatus(fl validator.FieldLevel) bool {
	validStatuses := []models.AssessmentStatus{
		models.StatusNotStarted,
		models.StatusInProgress,
		models.StatusCompleted,
		models.StatusCancelled,
	}

	value := fl.Field().String()
	for _, validStatus := range validStatuses {
		if string(validStatus) == value {
			return true
		}
	}
	return false
}

func validateResponseKind(fl validator.FieldLevel) bool {
	validKinds := []models.ResponseKind{
		models.KindLikert,
		models.KindBinary,
		models.KindMultipleChoice,
		models.KindNumeric,
		models.KindText,
	}

	value := fl.Field().String()
	for _, validKind := range validKinds {
		if string(validKind) == value {
			return true
		}
	}
	return false
}
