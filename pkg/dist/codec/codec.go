// Package codec provides the stream compressors a source distribution can be
// wrapped in. Each codec registers itself on package init.
package codec

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Codec names
const (
	None  = "none"
	Gzip  = "gzip"
	Bzip2 = "bzip2"
	XZ    = "xz"
	Zstd  = "zstd"
)

var ErrUnknownCodec = errors.New("unknown archive format")

// Codec compresses and decompresses a tar stream.
type Codec interface {
	// Name returns the canonical codec name (e.g., "gzip")
	Name() string

	// Suffix returns the archive file suffix including the tar part (e.g., ".tar.gz")
	Suffix() string

	// NewWriter wraps w so that everything written is compressed
	NewWriter(w io.Writer) (io.WriteCloser, error)

	// NewReader wraps r so that reads return decompressed data
	NewReader(r io.Reader) (io.ReadCloser, error)
}

var (
	registry = make(map[string]Codec)

	// Alternative names, including the distutils --formats spellings.
	aliases = map[string]string{
		"tar":     None,
		"raw":     None,
		"gz":      Gzip,
		"tgz":     Gzip,
		"tar.gz":  Gzip,
		"gztar":   Gzip,
		"bz2":     Bzip2,
		"tbz2":    Bzip2,
		"tar.bz2": Bzip2,
		"bztar":   Bzip2,
		"txz":     XZ,
		"tar.xz":  XZ,
		"xztar":   XZ,
		"zst":     Zstd,
		"tar.zst": Zstd,
		"zstdtar": Zstd,
	}
)

// Register makes c available under its name.
func Register(c Codec) {
	registry[c.Name()] = c
}

// Lookup finds a codec by name or alias, case-insensitively.
func Lookup(name string) (Codec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	c, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	return c, nil
}

// ForFilename picks the codec whose suffix path ends with. The longest
// matching suffix wins so ".tar.gz" is not mistaken for ".tar".
func ForFilename(path string) (Codec, error) {
	lower := strings.ToLower(path)

	var best Codec
	for _, c := range registry {
		if strings.HasSuffix(lower, c.Suffix()) && (best == nil || len(c.Suffix()) > len(best.Suffix())) {
			best = c
		}
	}
	if best == nil {
		if strings.HasSuffix(lower, ".tgz") {
			return Lookup(Gzip)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, path)
	}
	return best, nil
}

// Names lists the registered codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
