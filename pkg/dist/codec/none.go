package codec

import "io"

func init() {
	Register(noneCodec{})
}

// noneCodec writes a bare tar.
type noneCodec struct{}

func (noneCodec) Name() string   { return None }
func (noneCodec) Suffix() string { return ".tar" }

func (noneCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (noneCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}
