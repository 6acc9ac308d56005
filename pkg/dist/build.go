// Package dist builds, reads and verifies source distributions.
//
// A distribution is a (possibly compressed) tar whose entries all sit under a
// single "<name>-<version>/" directory holding PKG-INFO, the manifest and the
// scripts it declares.
package dist

import (
	"archive/tar"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/hashicorp/go-hclog"

	"github.com/mfgames/mfgames-doap/pkg/checksum"
	"github.com/mfgames/mfgames-doap/pkg/dist/codec"
	"github.com/mfgames/mfgames-doap/pkg/logging"
	"github.com/mfgames/mfgames-doap/pkg/manifest"
)

const (
	dirMode    = 0o755
	fileMode   = 0o644
	scriptMode = 0o755

	// EnvSourceDateEpoch pins archive timestamps for reproducible output.
	EnvSourceDateEpoch = "SOURCE_DATE_EPOCH"
)

// Options controls Build.
type Options struct {
	// Root is the project directory script paths are relative to.
	Root string
	// OutDir receives the archives; created if missing.
	OutDir string
	// Codecs selects the archive formats. Empty means gzip only.
	Codecs []codec.Codec
	// Checksum is the sidecar algorithm.
	Checksum checksum.Algorithm
	// Signer, when set, produces an armored detached signature per archive.
	Signer *openpgp.Entity
	// ModTime is stamped on every entry. Zero means SOURCE_DATE_EPOCH or now.
	ModTime time.Time
	// Progress is called once per entry written.
	Progress func(name string)
	Logger   hclog.Logger
}

// Result describes one archive written by Build.
type Result struct {
	Path      string
	Format    string
	Checksum  string
	Signature string
	Entries   []Entry
}

// Entry is one member of a distribution.
type Entry struct {
	Name  string
	Mode  int64
	Size  int64
	IsDir bool
}

type member struct {
	Entry
	data []byte
}

// Build validates md against opts.Root and writes one archive per codec.
func Build(ctx context.Context, md *manifest.Metadata, opts Options) ([]Result, error) {
	logger := logging.OrNull(opts.Logger)

	if err := md.Validate(opts.Root); err != nil {
		return nil, err
	}

	codecs := opts.Codecs
	if len(codecs) == 0 {
		gz, err := codec.Lookup(codec.Gzip)
		if err != nil {
			return nil, err
		}
		codecs = []codec.Codec{gz}
	}

	modTime, err := resolveModTime(opts.ModTime)
	if err != nil {
		return nil, err
	}

	members, err := collect(md, opts.Root)
	if err != nil {
		return nil, err
	}
	logger.Debug("collected distribution members", "count", len(members), "mtime", modTime.Format(time.RFC3339))

	if err := os.MkdirAll(opts.OutDir, dirMode); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var results []Result
	for _, c := range codecs {
		target := filepath.Join(opts.OutDir, md.DistName()+c.Suffix())
		logger.Info("writing distribution", "path", target, "format", c.Name())

		if err := writeArchive(ctx, target, c, members, modTime, opts.Progress); err != nil {
			return results, err
		}

		sum, err := checksum.WriteSidecar(target, opts.Checksum)
		if err != nil {
			return results, err
		}

		result := Result{
			Path:     target,
			Format:   c.Name(),
			Checksum: sum,
			Entries:  entries(members),
		}

		if opts.Signer != nil {
			sig, err := SignFile(target, opts.Signer)
			if err != nil {
				return results, err
			}
			result.Signature = sig
			logger.Debug("signed distribution", "signature", sig)
		}

		logger.Info("✓ distribution written", "path", target, "checksum", sum)
		results = append(results, result)
	}

	return results, nil
}

func resolveModTime(t time.Time) (time.Time, error) {
	if !t.IsZero() {
		return t.UTC(), nil
	}
	if epoch := os.Getenv(EnvSourceDateEpoch); epoch != "" {
		secs, err := strconv.ParseInt(epoch, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid %s %q: %w", EnvSourceDateEpoch, epoch, err)
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Now().UTC().Truncate(time.Second), nil
}

// collect gathers every member, including parent directories, sorted by name.
func collect(md *manifest.Metadata, root string) ([]member, error) {
	prefix := md.DistName()

	manifestData, err := manifest.Encode(md, manifest.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}

	files := map[string]member{}
	add := func(name string, mode int64, data []byte) {
		files[name] = member{Entry: Entry{Name: name, Mode: mode, Size: int64(len(data))}, data: data}
	}

	add(path.Join(prefix, manifest.PkgInfoName), fileMode, []byte(md.PkgInfo()))
	add(path.Join(prefix, manifest.FileName), fileMode, manifestData)

	for _, script := range md.Scripts {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(script)))
		if err != nil {
			return nil, fmt.Errorf("reading script %s: %w", script, err)
		}
		add(path.Join(prefix, filepath.ToSlash(script)), scriptMode, data)
	}

	dirs := map[string]bool{}
	for name := range files {
		for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
			dirs[dir] = true
		}
	}

	var members []member
	for dir := range dirs {
		members = append(members, member{Entry: Entry{Name: dir + "/", Mode: dirMode, IsDir: true}})
	}
	for _, m := range files {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

// Contents lists the entries Build would write for md, without writing.
func Contents(md *manifest.Metadata, root string) ([]Entry, error) {
	members, err := collect(md, root)
	if err != nil {
		return nil, err
	}
	return entries(members), nil
}

func entries(members []member) []Entry {
	out := make([]Entry, len(members))
	for i, m := range members {
		out[i] = m.Entry
	}
	return out
}

// writeArchive writes to a temporary file beside target and renames it into
// place, so a failed build never leaves a truncated archive behind.
func writeArchive(ctx context.Context, target string, c codec.Codec, members []member, modTime time.Time, progress func(string)) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".sdist-*")
	if err != nil {
		return fmt.Errorf("creating temporary archive: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	cw, err := c.NewWriter(tmp)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(cw)

	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeMember(tw, m, modTime); err != nil {
			return err
		}
		if progress != nil {
			progress(m.Name)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar writer: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("closing %s writer: %w", c.Name(), err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("moving archive into place: %w", err)
	}
	return nil
}

func writeMember(tw *tar.Writer, m member, modTime time.Time) error {
	header := &tar.Header{
		Name:    m.Name,
		Mode:    m.Mode,
		ModTime: modTime,
		Uname:   "root",
		Gname:   "root",
	}
	if m.IsDir {
		header.Typeflag = tar.TypeDir
	} else {
		header.Typeflag = tar.TypeReg
		header.Size = m.Size
	}

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("writing tar header for %s: %w", m.Name, err)
	}
	if m.IsDir {
		return nil
	}
	if _, err := tw.Write(m.data); err != nil {
		return fmt.Errorf("writing tar data for %s: %w", m.Name, err)
	}
	return nil
}
