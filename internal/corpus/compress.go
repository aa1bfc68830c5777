package corpus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression is chosen by file extension: ".gz" for gzip, ".zst" for
// zstandard. Anything else is read and written as is.
func compression(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// OpenFile opens a corpus file, decompressing it when its name ends in .gz
// or .zst.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	r, err := Decompress(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}

	return r, nil
}

// Decompress wraps rc in the decoder its name calls for. Closing the result
// closes rc.
func Decompress(rc io.ReadCloser, name string) (io.ReadCloser, error) {
	switch compression(name) {
	case ".gz":
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", name, err)
		}

		return stacked{Reader: zr, closers: []io.Closer{zr, rc}}, nil
	case ".zst":
		zr, err := zstd.NewReader(rc)
		if err != nil {
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}

		return stacked{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), rc}}, nil
	default:
		return rc, nil
	}
}

// CreateFile creates a corpus file, compressing it when its name ends in .gz
// or .zst. The compressed stream is only complete after Close.
func CreateFile(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	w, err := Compress(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}

	return w, nil
}

// Compress wraps wc in the encoder its name calls for. Closing the result
// flushes the encoder and then closes wc.
func Compress(wc io.WriteCloser, name string) (io.WriteCloser, error) {
	switch compression(name) {
	case ".gz":
		zw := gzip.NewWriter(wc)
		return stacked{Writer: zw, closers: []io.Closer{zw, wc}}, nil
	case ".zst":
		zw, err := zstd.NewWriter(wc)
		if err != nil {
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}

		return stacked{Writer: zw, closers: []io.Closer{zw, wc}}, nil
	default:
		return wc, nil
	}
}

// stacked closes a codec and the file under it, in that order.
type stacked struct {
	io.Reader
	io.Writer
	closers []io.Closer
}

func (s stacked) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}

	return errors.Join(errs...)
}
