package errors

import (
	"testing"
)

func TestValidationError(t *testing.T) {
	// Test NewValidationError
	err := NewValidationError("patient_id", "is required", "")

	if err.Field != "patient_id" {
		t.Errorf("Expected field to be 'patient_id', got '%s'", err.Field)
	}

	if err.Message != "is required" {
		t.Errorf("Expected message to be 'is required', got '%s'", err.Message)
	}

	// Test Error method
	expected := "validation error on field 'patient_id': is required"
	if err.Error() != expected {
		t.Errorf("Expected error message to be '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	// Test empty ValidationErrors
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Expected 'validation failed' for empty errors, got '%s'", errs.Error())
	}

	// Test single ValidationError
	errs = append(errs, *NewValidationError("item-1", "not a valid option", "9"))
	expected := "validation failed: item-1 not a valid option"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for single error, got '%s'", expected, errs.Error())
	}

	// Test multiple ValidationErrors
	errs = append(errs, *NewValidationError("item-2", "is required", nil))
	expected = "validation failed: 2 field errors"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for multiple errors, got '%s'", expected, errs.Error())
	}
}

func TestNewValidationErrorWithRule(t *testing.T) {
	err := NewValidationErrorWithRule("mode", "must be a valid administration mode (professional, self_administered, remote)", "administration_mode", "telepathic")

	if err.Rule != "administration_mode" {
		t.Errorf("Expected rule to be 'administration_mode', got '%s'", err.Rule)
	}

	if err.Field != "mode" {
		t.Errorf("Expected field to be 'mode', got '%s'", err.Field)
	}
}
