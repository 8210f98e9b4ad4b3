package models

import "errors"

// Common errors for registry operations.
var (
	// Network errors
	ErrNetworkNotFound  = errors.New("network not found")
	ErrDuplicateNetwork = errors.New("network already exists")

	// Exchange / IXLAN errors
	ErrExchangeNotFound = errors.New("exchange not found")
	ErrIXLanNotFound    = errors.New("ixlan not found")

	// Connection record errors
	ErrNetIXLanNotFound  = errors.New("connection record not found")
	ErrDuplicateNetIXLan = errors.New("connection record already exists")

	// Proposal errors
	ErrProposalNotFound = errors.New("proposal not found")

	// Archive errors
	ErrImportLogNotFound = errors.New("import log not found")
)

// ValidationError reports a business-rule violation while applying a
// reconciliation decision. The importer does not abort on these; the
// triggering proposal is moved to the conflicted state instead.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validation reports whether err is (or wraps) a ValidationError.
func Validation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
