package core

import "strings"

// Field-level messages surfaced to API clients.
const (
	MsgUserIDInvalid      = "User ID must be a positive integer"
	MsgUserIDRequired     = "User ID is required"
	MsgCategoryIDInvalid  = "Category ID must be a positive integer"
	MsgCategoryIDRequired = "Category ID is required"
	MsgAmountInvalid      = "Amount must be a positive number"
	MsgAmountRequired     = "Amount is required"
	MsgDateInvalid        = "Date must be a valid date format (YYYY-MM-DD)"
	MsgDateRequired       = "Date is required"
	MsgDescriptionInvalid = "Description must be a string"
	MsgDescriptionTooLong = "Description cannot exceed 500 characters"
	MsgExpenseIDInvalid   = "Expense ID must be a positive integer"
	MsgStartDateInvalid   = "Start date must be a valid date format (YYYY-MM-DD)"
	MsgEndDateInvalid     = "End date must be a valid date format (YYYY-MM-DD)"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (v *ValidationError) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field was recorded so callers never return a
// typed nil inside a non-nil error interface.
func (v *ValidationError) OrNil() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	msgs := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}
