package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Output receives one transcript per completed request.
type Output interface {
	Write(id string, contents string)
}

// FilesystemOutput writes each transcript to its own file in a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears the directory of previous transcripts.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id+".txt"), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write http transcript", "id", id, "err", err)
	}
}
