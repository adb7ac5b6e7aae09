package errors

import "fmt"

// Pipeline error taxonomy. Each delivery terminates in exactly one of these
// (or succeeds); handlers map them to HTTP statuses with errors.As.

type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

type InactiveTenantError struct {
	ShopDomain string
}

func (e *InactiveTenantError) Error() string {
	return "tenant inactive: " + e.ShopDomain
}

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type EncryptionError struct {
	Op  string
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encryption failure in %s: %v", e.Op, e.Err)
}

func (e *EncryptionError) Unwrap() error { return e.Err }
