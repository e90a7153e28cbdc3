package parsing

import (
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/alchemgo/alchemgo/errors"
)

// Open opens a data file for reading, transparently decompressing
// gzip (.gz) and bzip2 (.bz2) files by extension. The caller must
// close the returned reader.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "gzip header of %s", path)
		}
		return &decompressed{r: zr, closers: []io.Closer{zr, f}}, nil
	case strings.HasSuffix(path, ".bz2"):
		return &decompressed{r: bzip2.NewReader(f), closers: []io.Closer{f}}, nil
	default:
		return f, nil
	}
}

type decompressed struct {
	r       io.Reader
	closers []io.Closer
}

func (d *decompressed) Read(p []byte) (int, error) { return d.r.Read(p) }

func (d *decompressed) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
