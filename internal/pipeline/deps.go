package pipeline

import "os"

// tempDirCreator creates the per-session work directory.
type tempDirCreator interface {
	MkdirTemp(dir, pattern string) (string, error)
}

// treeRemover deletes the work directory tree after a session.
type treeRemover interface {
	RemoveAll(path string) error
}

// --- Default implementations using real OS functions ---

type osTempDirCreator struct{}

func (osTempDirCreator) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

type osTreeRemover struct{}

func (osTreeRemover) RemoveAll(path string) error {
	return os.RemoveAll(path)
}
