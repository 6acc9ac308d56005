package checksum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateKnownValues(t *testing.T) {
	data := []byte("abc")

	assert.Equal(t,
		"sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		Calculate(data, SHA256))
	assert.Equal(t, "adler32:024d0127", Calculate(data, Adler32))
	assert.Equal(t,
		"blake2b:bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319",
		Calculate(data, Blake2b))
	assert.Len(t, hexPart(Calculate(data, SHA512)), 128)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		algo    Algorithm
		value   string
		wantErr bool
	}{
		{"prefixed sha256", "sha256:ABCD", SHA256, "abcd", false},
		{"prefixed blake2b", "blake2b:00ff", Blake2b, "00ff", false},
		{"legacy adler32 by length", "024d0127", Adler32, "024d0127", false},
		{"legacy default", "abc", SHA256, "abc", false},
		{"unknown algorithm", "md5:abcd", SHA256, "", true},
		{"empty value", "sha256:", SHA256, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			algo, value, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.algo, algo)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestVerify(t *testing.T) {
	data := []byte("mfgames-doap")
	for _, algo := range []Algorithm{SHA256, SHA512, Adler32, Blake2b} {
		t.Run(algo.String(), func(t *testing.T) {
			ok, err := Verify(data, Calculate(data, algo))
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = Verify([]byte("other"), Calculate(data, algo))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg-1.0.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("archive bytes"), 0o644))

	sum, err := WriteSidecar(path, SHA256)
	require.NoError(t, err)

	content, err := os.ReadFile(SidecarPath(path, SHA256))
	require.NoError(t, err)
	assert.Equal(t, hexPart(sum)+"  pkg-1.0.tar.gz\n", string(content))

	got, err := VerifySidecar(path)
	require.NoError(t, err)
	assert.Equal(t, sum, got)

	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o644))
	_, err = VerifySidecar(path)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestVerifySidecarMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nothing.tar")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := VerifySidecar(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadSidecarBinaryMarker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.tar")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	sum := Calculate([]byte("x"), SHA512)
	line := hexPart(sum) + " *a.tar\n"
	require.NoError(t, os.WriteFile(SidecarPath(path, SHA512), []byte(line), 0o644))

	got, err := VerifySidecar(path)
	require.NoError(t, err)
	assert.Equal(t, sum, got)
}
