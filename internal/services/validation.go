package services

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the JSON error envelope every handler speaks.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Fields []FieldError `json:"fields,omitempty"`
}

// FieldError names one request field and the validation constraint it
// broke.
type FieldError struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
}

// ValidationHelper wraps a shared validator instance.
type ValidationHelper struct {
	validate *validator.Validate
}

func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{validate: validator.New()}
}

// ValidateStruct checks the struct's validate tags.
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validate.Struct(s)
}

// SendErrorResponse writes a JSON error. A validator error expands into
// per-field entries; any other error (or nil) yields the message alone.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		for _, fe := range fieldErrs {
			resp.Fields = append(resp.Fields, FieldError{Field: fe.Field(), Constraint: fe.Tag()})
		}
	}

	json.NewEncoder(w).Encode(resp)
}
