package payments

import "errors"

// ErrInvalidSignature is returned when an IPN's HMAC does not match the
// configured secret.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ValidationError describes an inbound payload that does not conform to the
// notification schema. Malformed is set when the body is not JSON at all.
type ValidationError struct {
	Malformed bool
	Fields    []string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return "invalid payment notification"
	}
	return "invalid payment notification: " + e.Reason
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
