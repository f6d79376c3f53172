package transcribe

// Export internal functions for testing.
// This file is only compiled during tests (suffix _test.go).

// AudioPathFor exports audioPathFor for testing.
var AudioPathFor = audioPathFor

// FailureReason exports failureReason for testing.
var FailureReason = failureReason
