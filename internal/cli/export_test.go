package cli

// Export internal functions for testing.

// RunProcess exports runProcess for testing.
var RunProcess = runProcess

// ParseProcessOptions exports parseProcessOptions for testing.
var ParseProcessOptions = parseProcessOptions

// ProcessOptions exports processOptions for testing.
type ProcessOptions = processOptions

// ProcessFlags exports processFlags for testing.
type ProcessFlags = processFlags

// RunPlan exports runPlan for testing.
var RunPlan = runPlan

// RunAnalyze exports runAnalyze for testing.
var RunAnalyze = runAnalyze

// RunConfigSet exports runConfigSet for testing.
var RunConfigSet = runConfigSet

// RunConfigGet exports runConfigGet for testing.
var RunConfigGet = runConfigGet

// RunConfigList exports runConfigList for testing.
var RunConfigList = runConfigList

// ValidateConfigValue exports validateConfigValue for testing.
var ValidateConfigValue = validateConfigValue

// IsValidConfigKey exports isValidConfigKey for testing.
var IsValidConfigKey = isValidConfigKey

// ValidConfigKeys exports validConfigKeys for testing.
var ValidConfigKeys = validConfigKeys

// DeriveTranscriptPath exports deriveTranscriptPath for testing.
var DeriveTranscriptPath = deriveTranscriptPath

// DeriveReportPath exports deriveReportPath for testing.
var DeriveReportPath = deriveReportPath

// SupportedFormatsList exports supportedFormatsList for testing.
var SupportedFormatsList = supportedFormatsList

// WriteExclusive exports writeExclusive for testing.
var WriteExclusive = writeExclusive

// FirstNonEmpty exports firstNonEmpty for testing.
var FirstNonEmpty = firstNonEmpty
