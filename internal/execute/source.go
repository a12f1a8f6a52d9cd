package execute

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/infosec-us-team/ibb/internal/value"
)

// fileSource serves one local document for every request. The program slug
// is ignored.
type fileSource struct {
	path     string
	stdin    io.Reader
	maxDepth int

	once sync.Once
	doc  value.Value
	err  error
}

func (s *fileSource) Projects(ctx context.Context) (value.Value, error) {
	return s.load(ctx)
}

func (s *fileSource) Program(ctx context.Context, _ string) (value.Value, error) {
	return s.load(ctx)
}

func (s *fileSource) load(ctx context.Context) (value.Value, error) {
	if err := ctx.Err(); err != nil {
		return value.Value{}, err
	}

	s.once.Do(func() {
		s.doc, s.err = s.read()
	})
	return s.doc, s.err
}

func (s *fileSource) read() (value.Value, error) {
	if s.path == "-" {
		doc, err := value.Decode(s.stdin, value.WithMaxDepth(s.maxDepth))
		if err != nil {
			return value.Value{}, fmt.Errorf("reading stdin: %w", err)
		}
		return doc, nil
	}

	file, err := os.Open(s.path)
	if err != nil {
		return value.Value{}, fmt.Errorf("failed to open file %s: %w", s.path, err)
	}
	defer file.Close()

	doc, err := value.Decode(file, value.WithMaxDepth(s.maxDepth))
	if err != nil {
		return value.Value{}, fmt.Errorf("failed to parse file %s: %w", s.path, err)
	}
	return doc, nil
}
