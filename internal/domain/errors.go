package domain

import "errors"

// Turn-scoped error kinds. All of them degrade a single turn; none are fatal
// to the host process.
var (
	// ErrToolUnavailable marks an adapter that exhausted its fallback chain.
	ErrToolUnavailable = errors.New("tool unavailable")
	// ErrInvalidLocation marks unparseable text or out-of-range coordinates.
	ErrInvalidLocation = errors.New("invalid location")
	// ErrUnknownStage marks a stage value outside the enumerated set.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrStorageUnavailable marks a failed profile/session read or write.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
