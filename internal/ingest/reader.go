package ingest

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// OpenSubmissionFile opens a spool file, transparently decompressing
// .zst and .gz.
func OpenSubmissionFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(path) {
	case ".zst":
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			f.Close()
			return nil, err
		}
		return &zstdReadCloser{zr: zr, f: f}, nil
	case ".gz":
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &gzipReadCloser{gr: gr, f: f}, nil
	default:
		return f, nil
	}
}

type zstdReadCloser struct {
	zr *zstd.Decoder
	f  *os.File
}

func (r *zstdReadCloser) Read(p []byte) (int, error) { return r.zr.Read(p) }

func (r *zstdReadCloser) Close() error {
	r.zr.Close()
	return r.f.Close()
}

type gzipReadCloser struct {
	gr *gzip.Reader
	f  *os.File
}

func (r *gzipReadCloser) Read(p []byte) (int, error) { return r.gr.Read(p) }

func (r *gzipReadCloser) Close() error {
	_ = r.gr.Close()
	return r.f.Close()
}

// IsSubmissionFile reports whether a file name looks like a submission
// spool file (.ndjson, optionally compressed).
func IsSubmissionFile(name string) bool {
	ext := filepath.Ext(name)
	if ext == ".ndjson" {
		return true
	}
	if ext == ".zst" || ext == ".gz" {
		base := name[:len(name)-len(ext)]
		return filepath.Ext(base) == ".ndjson"
	}
	return false
}
