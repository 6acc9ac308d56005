// Package install places a package's scripts under an installation prefix
// and keeps a receipt so they can be checked and removed later.
package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	cp "github.com/otiai10/copy"

	"github.com/mfgames/mfgames-doap/internal/prefix"
	"github.com/mfgames/mfgames-doap/pkg/checksum"
	"github.com/mfgames/mfgames-doap/pkg/dist"
	"github.com/mfgames/mfgames-doap/pkg/logging"
	"github.com/mfgames/mfgames-doap/pkg/manifest"
)

var (
	ErrScriptConflict = errors.New("scripts share an installed name")
	ErrInvalidName    = errors.New("invalid package name")
)

// Installer installs into Prefix. A zero Prefix uses prefix.Default() and a
// zero Mode uses DefaultMode.
type Installer struct {
	Prefix   string
	Mode     os.FileMode
	Logger   hclog.Logger
	Progress func(path string)
}

func (in *Installer) mode() os.FileMode {
	if in.Mode == 0 {
		return DefaultMode
	}
	return in.Mode.Perm()
}

// root returns the absolute prefix. Receipts store absolute paths so they
// stay valid whatever directory later commands run from.
func (in *Installer) root() (string, error) {
	root := in.Prefix
	if root == "" {
		root = prefix.Default()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving prefix %s: %w", root, err)
	}
	return abs, nil
}

// checkName rejects package names that could leave the data directory.
func checkName(name string) error {
	if !manifest.ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// owned reports whether p is a file this prefix may remove.
func owned(binDir, p string) bool {
	rel, err := filepath.Rel(binDir, p)
	return err == nil && filepath.IsLocal(rel)
}

func (in *Installer) logger() hclog.Logger {
	return logging.OrNull(in.Logger)
}

// Install copies every script of md, found under sourceRoot, into the bin
// directory with executable permissions and writes the receipt. Files left
// over from a previous installation of the same package are removed.
func (in *Installer) Install(ctx context.Context, md *manifest.Metadata, sourceRoot string) (*Receipt, error) {
	logger := in.logger().With("package", md.Name, "version", md.Version)

	if err := md.Validate(sourceRoot); err != nil {
		return nil, err
	}
	root, err := in.root()
	if err != nil {
		return nil, err
	}

	binDir := prefix.BinDir(root)
	targets := map[string]string{}
	for _, script := range md.Scripts {
		dest := filepath.Join(binDir, path.Base(script))
		if other, ok := targets[dest]; ok {
			return nil, fmt.Errorf("%w: %s and %s", ErrScriptConflict, other, script)
		}
		targets[dest] = script
	}

	previous, err := readReceipt(root, md.Name)
	if err != nil && !errors.Is(err, ErrNotInstalled) {
		return nil, err
	}

	receipt := &Receipt{
		ID:        uuid.NewString(),
		Name:      md.Name,
		Version:   md.Version,
		Prefix:    root,
		Timestamp: time.Now().UTC(),
	}

	for _, script := range md.Scripts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		src := filepath.Join(sourceRoot, filepath.FromSlash(script))
		dest := filepath.Join(binDir, path.Base(script))
		logger.Debug("installing script", "source", src, "dest", dest, "mode", FormatMode(in.mode()))

		opts := cp.Options{
			Sync:      true,
			OnSymlink: func(string) cp.SymlinkAction { return cp.Deep },
		}
		if err := cp.Copy(src, dest, opts); err != nil {
			return nil, fmt.Errorf("installing %s: %w", script, err)
		}
		if err := os.Chmod(dest, in.mode()); err != nil {
			return nil, fmt.Errorf("setting mode on %s: %w", dest, err)
		}

		sum, err := checksum.CalculateFile(dest, checksum.SHA256)
		if err != nil {
			return nil, err
		}
		receipt.Files = append(receipt.Files, InstalledFile{Path: dest, Checksum: sum})

		if in.Progress != nil {
			in.Progress(dest)
		}
	}

	if previous != nil {
		for _, old := range previous.Files {
			if _, ok := targets[old.Path]; ok || reinstalled(old.Path, targets) {
				continue
			}
			if !owned(binDir, old.Path) {
				logger.Warn("not removing file outside the bin directory", "path", old.Path)
				continue
			}
			logger.Debug("removing stale file", "path", old.Path)
			if err := os.Remove(old.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn("failed to remove stale file", "path", old.Path, "error", err)
			}
		}
	}

	if err := receipt.write(); err != nil {
		return nil, err
	}

	logger.Info("✓ installed", "files", len(receipt.Files), "prefix", root)
	return receipt, nil
}

// InstallArchive extracts a distribution built by dist.Build into a scratch
// directory and installs from it.
func (in *Installer) InstallArchive(ctx context.Context, archivePath string) (*Receipt, error) {
	scratch, err := os.MkdirTemp("", "mfgames-doap-install-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	top, err := dist.Extract(ctx, archivePath, scratch)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", archivePath, err)
	}

	md, err := manifest.Load(filepath.Join(top, manifest.FileName))
	if err != nil {
		return nil, err
	}
	return in.Install(ctx, md, top)
}

// lookup resolves the prefix and reads the receipt for name.
func (in *Installer) lookup(name string) (string, *Receipt, error) {
	if err := checkName(name); err != nil {
		return "", nil, err
	}
	root, err := in.root()
	if err != nil {
		return "", nil, err
	}
	r, err := readReceipt(root, name)
	if err != nil {
		return "", nil, err
	}
	return root, r, nil
}

// reinstalled reports whether p is one of the files just written, reached
// through another spelling of the prefix.
func reinstalled(p string, targets map[string]string) bool {
	oldInfo, err := os.Stat(p)
	if err != nil {
		return false
	}
	for dest := range targets {
		if info, err := os.Stat(dest); err == nil && os.SameFile(oldInfo, info) {
			return true
		}
	}
	return false
}

// Installed returns the receipt for name, or ErrNotInstalled.
func (in *Installer) Installed(name string) (*Receipt, error) {
	_, r, err := in.lookup(name)
	return r, err
}

// IsCurrent reports whether name is installed at version and none of its
// files have been changed or removed since.
func (in *Installer) IsCurrent(name, version string) bool {
	_, r, err := in.lookup(name)
	if err != nil {
		return false
	}
	return r.Version == version && r.intact()
}

// Uninstall removes the files recorded for name and its bookkeeping, and
// returns the paths it removed. Recorded paths outside the bin directory are
// left alone.
func (in *Installer) Uninstall(name string) ([]string, error) {
	logger := in.logger().With("package", name)

	root, r, err := in.lookup(name)
	if err != nil {
		return nil, err
	}
	binDir := prefix.BinDir(root)

	var removed []string
	for _, f := range r.Files {
		if !owned(binDir, f.Path) {
			logger.Warn("not removing file outside the bin directory", "path", f.Path)
			continue
		}
		err := os.Remove(f.Path)
		switch {
		case err == nil:
			removed = append(removed, f.Path)
		case errors.Is(err, os.ErrNotExist):
			logger.Debug("already gone", "path", f.Path)
		default:
			return removed, fmt.Errorf("removing %s: %w", f.Path, err)
		}
	}

	if err := os.RemoveAll(prefix.DataDir(root, name)); err != nil {
		return removed, err
	}

	logger.Info("✓ uninstalled", "files", len(removed))
	return removed, nil
}
