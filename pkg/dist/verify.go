package dist

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/hashicorp/go-hclog"

	"github.com/mfgames/mfgames-doap/pkg/checksum"
	"github.com/mfgames/mfgames-doap/pkg/logging"
	"github.com/mfgames/mfgames-doap/pkg/manifest"
)

var ErrVerificationFailed = errors.New("distribution verification failed")

// Report is what Verify learned about a distribution.
type Report struct {
	Metadata *manifest.Metadata
	Checksum string
	Signer   string
	Entries  []Entry
	Problems []string
}

// Verify checks an archive written by Build: its checksum sidecar (when
// present), the embedded manifest and PKG-INFO, that every declared script is
// packaged, and, when keyring is non-nil, its detached signature. Every
// problem is collected; the returned error wraps ErrVerificationFailed.
func Verify(archivePath string, keyring openpgp.KeyRing, logger hclog.Logger) (*Report, error) {
	logger = logging.OrNull(logger)
	report := &Report{}
	fail := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		report.Problems = append(report.Problems, msg)
		logger.Error("verification problem", "details", msg)
	}

	sum, err := checksum.VerifySidecar(archivePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("no checksum file, skipping checksum verification", "path", archivePath)
	case err != nil:
		fail("checksum: %v", err)
	default:
		report.Checksum = sum
		logger.Info("✓ checksum valid", "checksum", sum)
	}

	files := map[string][]byte{}
	err = walk(archivePath, func(hdr *tar.Header, r io.Reader) error {
		report.Entries = append(report.Entries, Entry{
			Name:  hdr.Name,
			Mode:  hdr.Mode,
			Size:  hdr.Size,
			IsDir: hdr.Typeflag == tar.TypeDir,
		})
		if hdr.Typeflag != tar.TypeReg {
			return nil
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		files[path.Clean(hdr.Name)] = data
		return nil
	})
	if err != nil {
		fail("reading archive: %v", err)
		return report, report.err()
	}

	top := topLevel(report.Entries)
	if top == "" {
		fail("archive entries do not share a single top-level directory")
		return report, report.err()
	}

	manifestData, ok := files[path.Join(top, manifest.FileName)]
	if !ok {
		fail("missing %s", manifest.FileName)
		return report, report.err()
	}
	md, err := manifest.Parse(manifestData, manifest.FormatJSON)
	if err != nil {
		fail("embedded manifest: %v", err)
		return report, report.err()
	}
	report.Metadata = md

	if err := md.Validate(""); err != nil {
		fail("%v", err)
	}
	if top != md.DistName() {
		fail("top-level directory %q does not match %q", top, md.DistName())
	}

	if pkgInfo, ok := files[path.Join(top, manifest.PkgInfoName)]; !ok {
		fail("missing %s", manifest.PkgInfoName)
	} else if info, err := manifest.ParsePkgInfo(string(pkgInfo)); err != nil {
		fail("%v", err)
	} else {
		compare := func(field, got, want string) {
			if got != want {
				fail("%s %s is %q, manifest says %q", manifest.PkgInfoName, field, got, want)
			}
		}
		compare("Name", info.Name, md.Name)
		compare("Version", info.Version, md.Version)
		compare("Summary", info.Description, md.Description)
		compare("Author", info.Author, md.Author)
		compare("Home-page", info.URL, md.URL)
	}

	for _, script := range md.Scripts {
		if _, ok := files[path.Join(top, script)]; !ok {
			fail("script %q is not in the archive", script)
		}
	}

	if keyring != nil {
		signer, err := CheckSignature(archivePath, keyring)
		if err != nil {
			fail("signature: %v", err)
		} else {
			report.Signer = signer
			logger.Info("✓ signature valid", "signer", signer)
		}
	}

	if err := report.err(); err != nil {
		return report, err
	}
	logger.Info("✓ distribution verification passed", "path", archivePath)
	return report, nil
}

func (r *Report) err() error {
	if len(r.Problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(r.Problems, "; "))
}

func topLevel(entries []Entry) string {
	top := ""
	for _, e := range entries {
		first := strings.SplitN(e.Name, "/", 2)[0]
		if top == "" {
			top = first
		} else if first != top {
			return ""
		}
	}
	return top
}
