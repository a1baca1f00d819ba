package domain

import "github.com/cockroachdb/errors"

// Error taxonomy shared by the ledger, the derived views and the HTTP layer.
// Concrete errors wrap one of these sentinels so callers can use errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrInvalidReference = errors.New("invalid reference")
	ErrDuplicate        = errors.New("duplicate")
	ErrNotFound         = errors.New("not found")
	ErrExternalService  = errors.New("external service failure")

	// ErrAccountInUse is returned when deleting an account that is still referenced.
	ErrAccountInUse = errors.New("account is referenced")

	// ErrPolicyRequired is returned when a referenced purpose is deleted without a policy.
	ErrPolicyRequired = errors.New("delete policy required")

	// ErrPersist marks a mutation that was applied in memory but could not be
	// written to the backing store.
	ErrPersist = errors.New("failed to save")
)

// Validationf builds an ErrValidation with a formatted detail message.
func Validationf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// NotFoundf builds an ErrNotFound with a formatted detail message.
func NotFoundf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// InvalidReferencef builds an ErrInvalidReference with a formatted detail message.
func InvalidReferencef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidReference, format, args...)
}

// Duplicatef builds an ErrDuplicate with a formatted detail message.
func Duplicatef(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDuplicate, format, args...)
}

// External marks err as an ErrExternalService while keeping its message and chain.
func External(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, msg), ErrExternalService)
}
