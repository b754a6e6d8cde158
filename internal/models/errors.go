package models

import "errors"

// Error classes shared by every package. Callers match them with errors.Is;
// producers wrap them with fmt.Errorf("context: %w", ErrX).
var (
	// ErrConfiguration marks deterministic input problems: unknown modes or
	// spaces, missing surface directories, malformed output names.
	ErrConfiguration = errors.New("configuration error")

	// ErrData marks invalid payloads, such as non-finite labels in a vote.
	ErrData = errors.New("data error")

	// ErrResource marks missing or unreadable transform and source files.
	ErrResource = errors.New("resource error")
)
