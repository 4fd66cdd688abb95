package validation

import (
	"fmt"
	"regexp"
)

// JSONSchema describes the expected shape of a decoded JSON payload. Styling
// requests are one level deep, so properties do not nest.
type JSONSchema struct {
	Type                 string
	Properties           map[string]Property
	Required             []string
	AdditionalProperties bool
}

// Property constrains a single field of the payload.
type Property struct {
	Type      string
	MinLength *int
	MaxLength *int
	Pattern   *string
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidateInput checks a decoded JSON object against the schema. It reports
// every violation rather than stopping at the first, so a client fixing a
// bad request sees the whole list at once.
func ValidateInput(input map[string]interface{}, schema JSONSchema) *ValidationResult {
	var errs []ValidationError

	for _, name := range schema.Required {
		if _, ok := input[name]; !ok {
			errs = append(errs, ValidationError{
				Field:   name,
				Message: "field is required",
				Code:    "FIELD_REQUIRED",
			})
		}
	}

	for name, value := range input {
		prop, known := schema.Properties[name]
		if !known {
			if !schema.AdditionalProperties {
				errs = append(errs, ValidationError{
					Field:   name,
					Message: "unknown field",
					Code:    "FIELD_UNKNOWN",
				})
			}
			continue
		}
		errs = append(errs, checkProperty(name, value, prop)...)
	}

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func checkProperty(name string, value interface{}, prop Property) []ValidationError {
	if !matchesType(value, prop.Type) {
		// Skip the remaining constraints; they assume the declared type.
		return []ValidationError{{
			Field:   name,
			Message: fmt.Sprintf("expected %s, got %T", prop.Type, value),
			Code:    "TYPE_MISMATCH",
		}}
	}

	var errs []ValidationError
	if s, ok := value.(string); ok {
		if prop.MinLength != nil && len(s) < *prop.MinLength {
			errs = append(errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("must be at least %d characters", *prop.MinLength),
				Code:    "LENGTH_OUT_OF_RANGE",
			})
		}
		if prop.MaxLength != nil && len(s) > *prop.MaxLength {
			errs = append(errs, ValidationError{
				Field:   name,
				Message: fmt.Sprintf("must be at most %d characters", *prop.MaxLength),
				Code:    "LENGTH_OUT_OF_RANGE",
			})
		}
		if prop.Pattern != nil {
			matched, err := regexp.MatchString(*prop.Pattern, s)
			if err != nil || !matched {
				errs = append(errs, ValidationError{
					Field:   name,
					Message: fmt.Sprintf("must match %s", *prop.Pattern),
					Code:    "FORMAT_MISMATCH",
				})
			}
		}
	}
	return errs
}

// matchesType covers the JSON types a styling payload can carry. encoding/json
// decodes numbers into float64, so "number" accepts only that.
func matchesType(value interface{}, want string) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	}
	return true
}

// HasErrors reports whether any field failed.
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// GetErrorMessages flattens the result into "field: message" strings for
// error responses.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, e := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return messages
}

// Format checkers shared by the notifier and the catalog tooling. Patterns
// compile once at init; the checkers run on every request.

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern    = regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
	pageURLPattern  = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)
	hexColorPattern = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)
)

// ValidateEmail reports whether the address can receive a completion notice.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePhone reports whether the number looks deliverable over SMS.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ValidateURL accepts the http(s) product page addresses the capture
// extension sends. Other schemes are rejected.
func ValidateURL(url string) bool {
	return pageURLPattern.MatchString(url)
}

// ValidateHexColor accepts #RRGGBB wardrobe colors, hash optional.
func ValidateHexColor(color string) bool {
	return hexColorPattern.MatchString(color)
}
