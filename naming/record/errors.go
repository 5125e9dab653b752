package record

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Decode errors: the bytes are not a well-formed record.
var (
	ErrKeyMismatch          = errors.New("record value does not start with its key")
	ErrUnknownRecordType    = errors.New("unknown record type")
	ErrUnexpectedRecordType = errors.New("unexpected record type")
	ErrMoreData             = errors.New("trailing data after record")
)

// Trust errors: the record is well formed but must not be believed.
var (
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrNoPublisher       = errors.New("record has no publisher")
	ErrWrongSigner       = errors.New("record signed by the wrong peer")
	ErrChainNameMismatch = errors.New("lease chain does not follow the name hierarchy")
	ErrNoExpiry          = errors.New("lease record stored without expiry")
	ErrUnexpectedExpiry  = errors.New("root record stored with expiry")
	ErrUntrustedRoot     = errors.New("chain does not lead to the trusted root owner")
)

// DecodeError wraps a failure to parse one field of a record.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(err error, field string) error {
	return &DecodeError{Field: field, Err: err}
}

// ExpiredError reports by how much a record or lease has expired.
type ExpiredError struct {
	By time.Duration
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("record expired %s ago", e.By)
}

// TTLTooBigError reports by how much a stored expiry exceeds the republish interval.
type TTLTooBigError struct {
	By time.Duration
}

func (e *TTLTooBigError) Error() string {
	return fmt.Sprintf("record expiry is %s beyond the republish interval", e.By)
}

// IsDecodeError reports whether err means the record bytes are malformed.
func IsDecodeError(err error) bool {
	var de *DecodeError
	if errors.As(err, &de) {
		return true
	}
	for _, target := range []error{ErrKeyMismatch, ErrUnknownRecordType, ErrUnexpectedRecordType, ErrMoreData} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsTrustError reports whether err means the record is well formed but not trustworthy.
func IsTrustError(err error) bool {
	var expired *ExpiredError
	var ttl *TTLTooBigError
	if errors.As(err, &expired) || errors.As(err, &ttl) {
		return true
	}
	for _, target := range []error{ErrInvalidSignature, ErrNoPublisher, ErrWrongSigner,
		ErrChainNameMismatch, ErrNoExpiry, ErrUnexpectedExpiry, ErrUntrustedRoot} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
