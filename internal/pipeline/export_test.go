package pipeline

// Test-only exports.
var (
	WithTempDirCreator = withTempDirCreator
	WithTreeRemover    = withTreeRemover
)

type (
	TempDirCreator = tempDirCreator
	TreeRemover    = treeRemover
)
