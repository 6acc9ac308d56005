package dist

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfgames/mfgames-doap/pkg/checksum"
	"github.com/mfgames/mfgames-doap/pkg/dist/codec"
	"github.com/mfgames/mfgames-doap/pkg/manifest"
)

var fixedTime = time.Date(2013, 4, 1, 12, 0, 0, 0, time.UTC)

func testLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  "dist_test",
		Level: hclog.Trace,
	})
}

func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "mfgames-doap"), []byte("#!/bin/sh\necho doap\n"), 0o644))
	return root
}

func buildDefault(t *testing.T, root string, formats ...string) []Result {
	t.Helper()
	var codecs []codec.Codec
	for _, f := range formats {
		c, err := codec.Lookup(f)
		require.NoError(t, err)
		codecs = append(codecs, c)
	}
	results, err := Build(context.Background(), manifest.Default(), Options{
		Root:    root,
		OutDir:  filepath.Join(t.TempDir(), "dist"),
		Codecs:  codecs,
		ModTime: fixedTime,
		Logger:  testLogger(),
	})
	require.NoError(t, err)
	return results
}

func TestBuildLayout(t *testing.T) {
	root := writeProject(t)
	results := buildDefault(t, root)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "mfgames-doap-0.0.0.tar.gz", filepath.Base(res.Path))
	assert.Equal(t, codec.Gzip, res.Format)
	assert.FileExists(t, checksum.SidecarPath(res.Path, checksum.SHA256))

	listed, err := List(res.Path)
	require.NoError(t, err)

	var names []string
	for _, e := range listed {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{
		"mfgames-doap-0.0.0/",
		"mfgames-doap-0.0.0/PKG-INFO",
		"mfgames-doap-0.0.0/mfgames-doap.json",
		"mfgames-doap-0.0.0/src/",
		"mfgames-doap-0.0.0/src/mfgames-doap",
	}, names)
	assert.Equal(t, int64(0o755), listed[4].Mode)
	assert.Equal(t, res.Entries, listed)

	pkgInfo, err := ReadFile(res.Path, "mfgames-doap-0.0.0/PKG-INFO")
	require.NoError(t, err)
	assert.Equal(t, manifest.Default().PkgInfo(), string(pkgInfo))

	_, err = ReadFile(res.Path, "mfgames-doap-0.0.0/setup.py")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestBuildIsReproducible(t *testing.T) {
	root := writeProject(t)
	first := buildDefault(t, root)[0]
	second := buildDefault(t, root)[0]

	a, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	b, err := os.ReadFile(second.Path)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, first.Checksum, second.Checksum)
}

func TestBuildEveryFormatVerifies(t *testing.T) {
	root := writeProject(t)
	results := buildDefault(t, root, codec.Names()...)
	require.Len(t, results, len(codec.Names()))

	for _, res := range results {
		t.Run(res.Format, func(t *testing.T) {
			report, err := Verify(res.Path, nil, testLogger())
			require.NoError(t, err)
			assert.Equal(t, res.Checksum, report.Checksum)
			assert.Equal(t, manifest.Default(), report.Metadata)
			assert.Empty(t, report.Problems)
		})
	}
}

func TestBuildRejectsInvalidManifest(t *testing.T) {
	md := manifest.Default()
	md.Scripts = []string{"src/missing"}

	out := filepath.Join(t.TempDir(), "dist")
	_, err := Build(context.Background(), md, Options{Root: writeProject(t), OutDir: out})
	assert.ErrorIs(t, err, manifest.ErrInvalidManifest)
	assert.NoDirExists(t, out)
}

func TestBuildHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := filepath.Join(t.TempDir(), "dist")
	_, err := Build(ctx, manifest.Default(), Options{Root: writeProject(t), OutDir: out, ModTime: fixedTime})
	assert.ErrorIs(t, err, context.Canceled)

	leftovers, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestBuildReportsProgress(t *testing.T) {
	var seen []string
	_, err := Build(context.Background(), manifest.Default(), Options{
		Root:     writeProject(t),
		OutDir:   t.TempDir(),
		ModTime:  fixedTime,
		Progress: func(name string) { seen = append(seen, name) },
	})
	require.NoError(t, err)
	assert.Len(t, seen, 5)
}

func TestResolveModTime(t *testing.T) {
	t.Setenv(EnvSourceDateEpoch, "1000000000")
	got, err := resolveModTime(time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1000000000, 0).UTC(), got)

	got, err = resolveModTime(fixedTime)
	require.NoError(t, err)
	assert.Equal(t, fixedTime, got)

	t.Setenv(EnvSourceDateEpoch, "yesterday")
	_, err = resolveModTime(time.Time{})
	assert.Error(t, err)
}

func TestVerifyDetectsChecksumMismatch(t *testing.T) {
	members, err := collect(manifest.Default(), writeProject(t))
	require.NoError(t, err)

	c, err := codec.Lookup(codec.None)
	require.NoError(t, err)
	archive := filepath.Join(t.TempDir(), "mfgames-doap-0.0.0.tar")
	require.NoError(t, writeArchive(context.Background(), archive, c, members, fixedTime, nil))
	require.NoError(t, os.WriteFile(checksum.SidecarPath(archive, checksum.SHA256), []byte("00  mfgames-doap-0.0.0.tar\n"), 0o644))

	report, err := Verify(archive, nil, testLogger())
	assert.ErrorIs(t, err, ErrVerificationFailed)
	require.Len(t, report.Problems, 1)
	assert.Contains(t, report.Problems[0], "checksum")
	assert.Equal(t, manifest.Default(), report.Metadata)
}

func TestVerifyDetectsMetadataMismatch(t *testing.T) {
	members, err := collect(manifest.Default(), writeProject(t))
	require.NoError(t, err)

	for i := range members {
		if filepath.Base(members[i].Name) == manifest.PkgInfoName {
			other := manifest.Default()
			other.Version = "9.9.9"
			members[i].data = []byte(other.PkgInfo())
			members[i].Size = int64(len(members[i].data))
		}
	}
	// Drop the script from the archive.
	members = members[:len(members)-1]

	c, err := codec.Lookup(codec.Gzip)
	require.NoError(t, err)
	archive := filepath.Join(t.TempDir(), "mfgames-doap-0.0.0.tar.gz")
	require.NoError(t, writeArchive(context.Background(), archive, c, members, fixedTime, nil))

	report, err := Verify(archive, nil, testLogger())
	assert.ErrorIs(t, err, ErrVerificationFailed)
	assert.Len(t, report.Problems, 2)
	assert.Contains(t, report.Problems[0], "Version")
	assert.Contains(t, report.Problems[1], "src/mfgames-doap")
}

func TestExtract(t *testing.T) {
	res := buildDefault(t, writeProject(t), codec.XZ)[0]

	dest := t.TempDir()
	top, err := Extract(context.Background(), res.Path, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "mfgames-doap-0.0.0"), top)

	script := filepath.Join(top, "src", "mfgames-doap")
	data, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho doap\n", string(data))

	info, err := os.Stat(script)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	md, err := manifest.Load(filepath.Join(top, manifest.FileName))
	require.NoError(t, err)
	assert.NoError(t, md.Validate(top))
}

func TestExtractRejectsUnsafeMembers(t *testing.T) {
	tests := map[string]*tar.Header{
		"parent escape": {Name: "../evil", Mode: 0o644, Typeflag: tar.TypeReg},
		"absolute":      {Name: "/etc/evil", Mode: 0o644, Typeflag: tar.TypeReg},
		"symlink":       {Name: "pkg/link", Linkname: "/etc/passwd", Typeflag: tar.TypeSymlink},
	}

	for name, hdr := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			tw := tar.NewWriter(&buf)
			require.NoError(t, tw.WriteHeader(hdr))
			require.NoError(t, tw.Close())

			archive := filepath.Join(t.TempDir(), "bad.tar")
			require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0o644))

			_, err := Extract(context.Background(), archive, t.TempDir())
			require.Error(t, err)
			if hdr.Typeflag == tar.TypeSymlink {
				assert.ErrorIs(t, err, ErrUnsupportedType)
			} else {
				assert.ErrorIs(t, err, ErrUnsafePath)
			}
		})
	}
}

func TestSignedDistribution(t *testing.T) {
	signer, err := openpgp.NewEntity("Test Signer", "", "signer@example.com", nil)
	require.NoError(t, err)
	stranger, err := openpgp.NewEntity("Stranger", "", "stranger@example.com", nil)
	require.NoError(t, err)

	results, err := Build(context.Background(), manifest.Default(), Options{
		Root:    writeProject(t),
		OutDir:  t.TempDir(),
		ModTime: fixedTime,
		Signer:  signer,
	})
	require.NoError(t, err)
	res := results[0]
	assert.Equal(t, res.Path+SignatureSuffix, res.Signature)

	report, err := Verify(res.Path, openpgp.EntityList{signer}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "Test Signer <signer@example.com>", report.Signer)

	report, err = Verify(res.Path, openpgp.EntityList{stranger}, testLogger())
	assert.ErrorIs(t, err, ErrVerificationFailed)
	require.Len(t, report.Problems, 1)
	assert.Contains(t, report.Problems[0], "signature")
}

func TestLoadSigningKey(t *testing.T) {
	entity, err := openpgp.NewEntity("Key File", "", "key@example.com", nil)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.asc")
	pubPath := filepath.Join(dir, "public.asc")

	var priv bytes.Buffer
	w, err := armor.Encode(&priv, openpgp.PrivateKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.SerializePrivate(w, nil))
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(privPath, priv.Bytes(), 0o600))

	var pub bytes.Buffer
	w, err = armor.Encode(&pub, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, entity.Serialize(w))
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(pubPath, pub.Bytes(), 0o644))

	loaded, err := LoadSigningKey(privPath, nil)
	require.NoError(t, err)

	target := filepath.Join(dir, "payload")
	require.NoError(t, os.WriteFile(target, []byte("payload"), 0o644))
	_, err = SignFile(target, loaded)
	require.NoError(t, err)

	keyring, err := LoadKeyRing(pubPath)
	require.NoError(t, err)
	signerID, err := CheckSignature(target, keyring)
	require.NoError(t, err)
	assert.Equal(t, "Key File <key@example.com>", signerID)

	_, err = LoadSigningKey(pubPath, nil)
	assert.ErrorIs(t, err, ErrNoPrivateKey)
}

func TestContentsMatchesBuild(t *testing.T) {
	root := writeProject(t)
	contents, err := Contents(manifest.Default(), root)
	require.NoError(t, err)

	res := buildDefault(t, root)[0]
	assert.Equal(t, res.Entries, contents)
}
