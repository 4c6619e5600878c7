package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Remote service errors
	//
	// ErrAuthExpired is never retried locally; re-running after a token
	// refresh is the recovery path. ErrRemoteUnavailable means the bounded
	// retry budget was spent; the sync ledger records the resume cursor.
	ErrAuthExpired       = fmt.Errorf("authentication expired")
	ErrRemoteUnavailable = fmt.Errorf("remote service unavailable")
	ErrRemoteWrite       = fmt.Errorf("remote write failed")

	// Normalization errors
	ErrPageNormalization = fmt.Errorf("page normalization failed")

	// Store errors
	ErrStoreIntegrity = fmt.Errorf("store integrity error")
	ErrNotFound       = fmt.Errorf("record not found")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
