package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Open returns a writer for path. An empty path or "-" writes to stdout,
// which is never closed. A ".gz" or ".zst" suffix compresses the output.
func Open(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{stdout}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return &stacked{w: gzip.NewWriter(f), file: f}, nil
	case ".zst":
		zw, err := zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return &stacked{w: zw, file: f}, nil
	default:
		return f, nil
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// stacked closes the compressor before the file underneath it.
type stacked struct {
	w    io.WriteCloser
	file *os.File
}

func (s *stacked) Write(p []byte) (int, error) { return s.w.Write(p) }

func (s *stacked) Close() error {
	err := s.w.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	return err
}
