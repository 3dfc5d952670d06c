package domain

// APIError is the error payload returned by every endpoint
type APIError struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// TransitionErrorDetails is attached to 409 responses for rejected status changes
type TransitionErrorDetails struct {
	CurrentStatus BookingStatus   `json:"currentStatus"`
	Requested     BookingStatus   `json:"requestedStatus"`
	Allowed       []BookingStatus `json:"allowed"`
}

// ValidationMessages provides human-readable validation error messages
// These map validator tags to user-friendly messages
var ValidationMessages = map[string]string{
	"required": "This field is required",
	"email":    "Must be a valid email address",
	"max":      "Exceeds maximum length",
	"min":      "Below minimum length",
	"gte":      "Must be greater than or equal to minimum value",
	"gt":       "Must be greater than minimum value",
	"lte":      "Must be less than or equal to maximum value",
	"lt":       "Must be less than maximum value",
	"uuid":     "Must be a valid UUID",
	"url":      "Must be a valid URL",
	"oneof":    "Must be one of the allowed values",
	"len":      "Must be exactly the specified length",
	"hexcolor": "Must be a hex color such as #1e40af",
	"iso4217":  "Must be an ISO 4217 currency code",
	"dive":     "One or more items are invalid",
	"unique":   "Items must be unique",
}

// GetValidationMessage returns a human-readable message for a validation tag
func GetValidationMessage(tag string) string {
	if msg, ok := ValidationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}
