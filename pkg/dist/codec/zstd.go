package codec

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

func init() {
	Register(zstdCodec{})
}

type zstdCodec struct{}

func (zstdCodec) Name() string   { return Zstd }
func (zstdCodec) Suffix() string { return ".tar.zst" }

func (zstdCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd writer: %w", err)
	}
	return zw, nil
}

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	return zr.IOReadCloser(), nil
}
