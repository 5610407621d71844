package broker

import (
	"errors"
	"fmt"
)

// Kind categorizes a parsing or classification failure.
type Kind string

const (
	// KindInvalidDateFormat marks a date that matched none of the accepted layouts.
	KindInvalidDateFormat Kind = "invalid_date_format"
	// KindInvalidDataFormat marks a malformed symbol, enum or other structured field.
	KindInvalidDataFormat Kind = "invalid_data_format"
	// KindMissingRequiredField marks a required field that was absent or blank.
	KindMissingRequiredField Kind = "missing_required_field"
	// KindInvalidTransactionType marks an unrecognized type/subtype/action triple.
	KindInvalidTransactionType Kind = "invalid_transaction_type"
	// KindInvalidAmount marks an unparseable numeric value.
	KindInvalidAmount Kind = "invalid_amount"
	// KindValidation is the catch-all for file-level and unexpected failures.
	KindValidation Kind = "validation_error"
)

// Error is a categorized parsing or classification failure.
type Error struct {
	Kind    Kind
	Field   string // the offending field, when one can be named
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("%s %q: %s", e.Kind, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// IsKind reports whether err or any error it wraps is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ErrInvalidDate builds an invalid-date error for a field value.
func ErrInvalidDate(field, value string) *Error {
	return &Error{Kind: KindInvalidDateFormat, Field: field, Message: fmt.Sprintf("cannot parse date %q", value)}
}

// ErrInvalidData builds a malformed-data error for a field value.
func ErrInvalidData(field, value string) *Error {
	return &Error{Kind: KindInvalidDataFormat, Field: field, Message: fmt.Sprintf("malformed value %q", value)}
}

// ErrMissingField builds a missing-required-field error.
func ErrMissingField(field string) *Error {
	return &Error{Kind: KindMissingRequiredField, Field: field, Message: "required field is missing"}
}

// ErrInvalidType builds an unrecognized-transaction-type error.
func ErrInvalidType(txType, subType, action string) *Error {
	return &Error{
		Kind:    KindInvalidTransactionType,
		Message: fmt.Sprintf("unrecognized transaction type %q / %q / %q", txType, subType, action),
	}
}

// ErrInvalidAmount builds an unparseable-amount error for a field value.
func ErrInvalidAmount(field, value string) *Error {
	return &Error{Kind: KindInvalidAmount, Field: field, Message: fmt.Sprintf("cannot parse number %q", value)}
}

// ErrValidation wraps an unexpected failure into the catch-all kind.
func ErrValidation(message string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: message, Cause: cause}
}
