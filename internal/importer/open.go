package importer

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
)

// Open opens an export file, transparently decompressing ".gz" files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading gzip export %s: %w", path, err)
	}
	return gzipFile{Reader: zr, file: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g gzipFile) Close() error {
	return multierr.Append(g.Reader.Close(), g.file.Close())
}
