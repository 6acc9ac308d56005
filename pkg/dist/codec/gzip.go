package codec

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

func init() {
	Register(gzipCodec{})
}

type gzipCodec struct{}

func (gzipCodec) Name() string   { return Gzip }
func (gzipCodec) Suffix() string { return ".tar.gz" }

// NewWriter leaves the gzip header time unset so output is reproducible.
func (gzipCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	gw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	return gw, nil
}

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	return gr, nil
}
