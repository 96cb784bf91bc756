package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports a submission field that failed validation.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

// ConfigurationError reports a request that cannot be served because the
// rate table or another operator-owned setting has no entry for it. It is
// a server fault, not a caller fault.
type ConfigurationError struct {
	Setting string
	Msg     string
	Err     error
}

func (e ConfigurationError) Error() string {
	if e.Msg != "" && e.Setting != "" {
		return fmt.Sprintf("configuration %s: %s", e.Setting, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	return "configuration error"
}

func (e ConfigurationError) Unwrap() error { return e.Err }

// PaymentError reports a rejected or failed payment confirmation.
type PaymentError struct {
	Reason string
	Err    error
}

func (e PaymentError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("payment failed: %s", e.Reason)
	}
	return "payment failed"
}

func (e PaymentError) Unwrap() error { return e.Err }

// PersistenceError reports a failed booking write during submission.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("persistence failed: %s", e.Op)
	}
	return "persistence failed"
}

func (e PersistenceError) Unwrap() error { return e.Err }

// NotificationError reports a failed dispatch-desk notification. It is
// logged, never surfaced to the submitting customer.
type NotificationError struct {
	Channel string
	Err     error
}

func (e NotificationError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("notification failed on %s", e.Channel)
	}
	return "notification failed"
}

func (e NotificationError) Unwrap() error { return e.Err }

// StoreError reports a store operation that kept failing after bounded
// retries. Attempts is the total number of tries made.
type StoreError struct {
	Op       string
	Attempts int
	Err      error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e StoreError) Unwrap() error { return e.Err }

// NotFoundError reports a missing record.
type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

// ConflictError reports a uniqueness or state conflict.
type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// AuthError reports failed authentication, a bad credential pair or an
// invalid token. The message is safe to show the caller.
type AuthError struct {
	Msg string
	Err error
}

func (e AuthError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "authentication failed"
}

func (e AuthError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConfiguration(err error) bool {
	var target ConfigurationError
	return errors.As(err, &target)
}

func IsPayment(err error) bool {
	var target PaymentError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target PersistenceError
	return errors.As(err, &target)
}

func IsNotification(err error) bool {
	var target NotificationError
	return errors.As(err, &target)
}

func IsStore(err error) bool {
	var target StoreError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsAuth(err error) bool {
	var target AuthError
	return errors.As(err, &target)
}
