package response

import (
	"context"
	"os"
	"strings"
)

// FileSource reads the latest response from a file that an external process
// keeps up to date, e.g. a transcript tail written by an editor integration.
// Every call re-reads the file so the freshest content wins.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) LatestResponse(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}
