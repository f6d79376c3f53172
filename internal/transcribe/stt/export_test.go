package stt

// Export internal functions for testing.
// This file is only compiled during tests (suffix _test.go).

// ClassifyError exports classifyError for testing.
var ClassifyError = classifyError

// IsRetryableError exports isRetryableError for testing.
var IsRetryableError = isRetryableError

// ClassifyGoogleError exports classifyGoogleError for testing.
var ClassifyGoogleError = classifyGoogleError

// IsRetryableGoogleError exports isRetryableGoogleError for testing.
var IsRetryableGoogleError = isRetryableGoogleError

// WithAudioClient exports withAudioClient for testing.
var WithAudioClient = withAudioClient

// WithRecognizeClient exports withRecognizeClient for testing.
var WithRecognizeClient = withRecognizeClient

// WithFileReader exports withFileReader for testing.
var WithFileReader = withFileReader

// AudioTranscriber exports the audioTranscriber interface for testing.
type AudioTranscriber = audioTranscriber

// RecognizeClient exports the recognizeClient interface for testing.
type RecognizeClient = recognizeClient
