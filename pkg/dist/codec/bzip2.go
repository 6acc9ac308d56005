package codec

import (
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
)

func init() {
	Register(bzip2Codec{})
}

type bzip2Codec struct{}

func (bzip2Codec) Name() string   { return Bzip2 }
func (bzip2Codec) Suffix() string { return ".tar.bz2" }

func (bzip2Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	bw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: 9})
	if err != nil {
		return nil, fmt.Errorf("creating bzip2 writer: %w", err)
	}
	return bw, nil
}

func (bzip2Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	br, err := bzip2.NewReader(r, &bzip2.ReaderConfig{})
	if err != nil {
		return nil, fmt.Errorf("creating bzip2 reader: %w", err)
	}
	return br, nil
}
