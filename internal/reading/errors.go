package reading

import "errors"

var (
	ErrEmptyPayload     = errors.New("empty payload")
	ErrMalformedPayload = errors.New("payload is neither a number nor JSON")
	ErrNoValueField     = errors.New("JSON payload has no value or state field")
)
