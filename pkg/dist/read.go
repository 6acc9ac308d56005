package dist

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mfgames/mfgames-doap/pkg/dist/codec"
)

// maxMemberSize bounds a single member; scripts and metadata are small.
const maxMemberSize = 1 << 30

var (
	ErrUnsafePath      = errors.New("unsafe path in archive")
	ErrUnsupportedType = errors.New("unsupported archive member type")
	ErrMemberNotFound  = errors.New("member not found in archive")
)

// walk calls fn for every member of the archive at archivePath. The reader
// passed to fn is only valid until fn returns.
func walk(archivePath string, fn func(hdr *tar.Header, r io.Reader) error) error {
	c, err := codec.ForFilename(archivePath)
	if err != nil {
		return err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	cr, err := c.NewReader(f)
	if err != nil {
		return err
	}
	defer cr.Close()

	tr := tar.NewReader(cr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar header: %w", err)
		}
		if err := checkMember(hdr); err != nil {
			return err
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

func checkMember(hdr *tar.Header) error {
	name := strings.TrimSuffix(hdr.Name, "/")
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, hdr.Name)
	}
	switch hdr.Typeflag {
	case tar.TypeDir, tar.TypeReg:
	default:
		return fmt.Errorf("%w: %q (type %q)", ErrUnsupportedType, hdr.Name, hdr.Typeflag)
	}
	if hdr.Size < 0 || hdr.Size > maxMemberSize {
		return fmt.Errorf("invalid size %d for %q", hdr.Size, hdr.Name)
	}
	return nil
}

// List returns the members of the archive in stored order.
func List(archivePath string) ([]Entry, error) {
	var out []Entry
	err := walk(archivePath, func(hdr *tar.Header, _ io.Reader) error {
		out = append(out, Entry{
			Name:  hdr.Name,
			Mode:  hdr.Mode,
			Size:  hdr.Size,
			IsDir: hdr.Typeflag == tar.TypeDir,
		})
		return nil
	})
	return out, err
}

// ReadFile returns the contents of one regular member.
func ReadFile(archivePath, name string) ([]byte, error) {
	var data []byte
	found := false
	err := walk(archivePath, func(hdr *tar.Header, r io.Reader) error {
		if found || hdr.Typeflag != tar.TypeReg || path.Clean(hdr.Name) != path.Clean(name) {
			return nil
		}
		found = true
		var err error
		data, err = io.ReadAll(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, name)
	}
	return data, nil
}

// Extract unpacks the archive under dest and returns the top-level directory
// it created. Members that would land outside dest are rejected.
func Extract(ctx context.Context, archivePath, dest string) (string, error) {
	if err := os.MkdirAll(dest, dirMode); err != nil {
		return "", err
	}

	var top string
	err := walk(archivePath, func(hdr *tar.Header, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := filepath.FromSlash(strings.TrimSuffix(hdr.Name, "/"))
		if top == "" {
			top = strings.SplitN(hdr.Name, "/", 2)[0]
		}
		target := filepath.Join(dest, name)

		if hdr.Typeflag == tar.TypeDir {
			return os.MkdirAll(target, dirMode)
		}
		if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
			return err
		}

		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
		if err != nil {
			return err
		}
		if _, err := io.CopyN(out, r, hdr.Size); err != nil {
			out.Close()
			return fmt.Errorf("extracting %s: %w", hdr.Name, err)
		}
		return out.Close()
	})
	if err != nil {
		return "", err
	}
	if top == "" {
		return "", fmt.Errorf("empty archive: %s", archivePath)
	}
	return filepath.Join(dest, top), nil
}
