package artifact

// Aliases so external tests can name the dependency interfaces.
type (
	FileRemover = fileRemover
	FileStatter = fileStatter
)
