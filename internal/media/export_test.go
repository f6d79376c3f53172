package media

// Export internal functions for testing.
// This file is only compiled during tests (suffix _test.go).

// ParseDurationFromOutput exports parseDurationFromOutput for testing.
var ParseDurationFromOutput = parseDurationFromOutput

// ParseTimeComponents exports parseTimeComponents for testing.
var ParseTimeComponents = parseTimeComponents

// FormatTime exports formatTime for testing.
var FormatTime = formatTime

// CommandRunner exports commandRunner interface for testing.
type CommandRunner = commandRunner
