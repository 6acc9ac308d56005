package install

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mfgames/mfgames-doap/internal/prefix"
	"github.com/mfgames/mfgames-doap/pkg/checksum"
)

const (
	receiptFile = "install.json"
	recordFile  = "installed-files.txt"
)

var ErrNotInstalled = errors.New("package is not installed")

// Receipt records one completed installation.
type Receipt struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Version   string          `json:"version"`
	Prefix    string          `json:"prefix"`
	Timestamp time.Time       `json:"timestamp"`
	Files     []InstalledFile `json:"files"`
}

// InstalledFile is one file placed by an installation.
type InstalledFile struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

func receiptPath(root, name string) string {
	return filepath.Join(prefix.DataDir(root, name), receiptFile)
}

// RecordPath is the plain list of installed files for name under root.
func RecordPath(root, name string) string {
	return filepath.Join(prefix.DataDir(root, name), recordFile)
}

func readReceipt(root, name string) (*Receipt, error) {
	data, err := os.ReadFile(receiptPath(root, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, name)
	}
	if err != nil {
		return nil, err
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing install receipt: %w", err)
	}
	return &r, nil
}

// write stores the receipt and the record list next to it.
func (r *Receipt) write() error {
	dir := prefix.DataDir(r.Prefix, r.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(receiptPath(r.Prefix, r.Name), data, 0o644); err != nil {
		return fmt.Errorf("writing install receipt: %w", err)
	}

	var record strings.Builder
	for _, f := range r.Files {
		record.WriteString(f.Path)
		record.WriteByte('\n')
	}
	if err := os.WriteFile(RecordPath(r.Prefix, r.Name), []byte(record.String()), 0o644); err != nil {
		return fmt.Errorf("writing install record: %w", err)
	}
	return nil
}

// intact reports whether every installed file still hashes to its recorded
// checksum.
func (r *Receipt) intact() bool {
	for _, f := range r.Files {
		if err := checksum.VerifyFile(f.Path, f.Checksum); err != nil {
			return false
		}
	}
	return true
}
