// Package checksum provides prefixed checksum strings for distribution files.
//
// Format: "algorithm:hexvalue" (e.g., "sha256:c0ffee123...", "adler32:babe1337")
package checksum

import (
	"bufio"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/adler32"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Algorithm represents a supported checksum algorithm.
type Algorithm int

const (
	SHA256 Algorithm = iota
	SHA512
	Adler32
	Blake2b
)

var (
	ErrUnknownAlgorithm = errors.New("unknown checksum algorithm")
	ErrMismatch         = errors.New("checksum mismatch")
)

func (a Algorithm) String() string {
	switch a {
	case SHA256:
		return "sha256"
	case SHA512:
		return "sha512"
	case Adler32:
		return "adler32"
	case Blake2b:
		return "blake2b"
	default:
		return "unknown"
	}
}

// ParseAlgorithm maps an algorithm name to its Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(name) {
	case "sha256":
		return SHA256, nil
	case "sha512":
		return SHA512, nil
	case "adler32":
		return Adler32, nil
	case "blake2b":
		return Blake2b, nil
	default:
		return SHA256, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case SHA512:
		return sha512.New()
	case Adler32:
		return adler32.New()
	case Blake2b:
		// A nil key never fails.
		h, _ := blake2b.New256(nil)
		return h
	default:
		return sha256.New()
	}
}

// Parse splits a checksum string into its algorithm and hex value.
// Unprefixed values are guessed by length.
func Parse(s string) (Algorithm, string, error) {
	if name, value, ok := strings.Cut(s, ":"); ok {
		algo, err := ParseAlgorithm(name)
		if err != nil {
			return SHA256, "", err
		}
		if value == "" {
			return SHA256, "", fmt.Errorf("invalid checksum format: %s", s)
		}
		return algo, strings.ToLower(value), nil
	}

	switch len(s) {
	case 128:
		return SHA512, strings.ToLower(s), nil
	case 8:
		return Adler32, strings.ToLower(s), nil
	default:
		return SHA256, strings.ToLower(s), nil
	}
}

// Calculate returns the prefixed checksum of data.
func Calculate(data []byte, algo Algorithm) string {
	h := algo.newHash()
	h.Write(data)
	return algo.String() + ":" + hex.EncodeToString(h.Sum(nil))
}

// CalculateReader returns the prefixed checksum of everything read from r.
func CalculateReader(r io.Reader, algo Algorithm) (string, error) {
	h := algo.newHash()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing: %w", err)
	}
	return algo.String() + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// CalculateFile returns the prefixed checksum of the file at path.
func CalculateFile(path string, algo Algorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return CalculateReader(f, algo)
}

// Verify reports whether data matches the checksum string.
func Verify(data []byte, expected string) (bool, error) {
	algo, want, err := Parse(expected)
	if err != nil {
		return false, err
	}
	return hexPart(Calculate(data, algo)) == want, nil
}

// VerifyFile checks the file at path against the checksum string and returns
// ErrMismatch when they differ.
func VerifyFile(path, expected string) error {
	algo, want, err := Parse(expected)
	if err != nil {
		return err
	}
	actual, err := CalculateFile(path, algo)
	if err != nil {
		return err
	}
	if hexPart(actual) != want {
		return fmt.Errorf("%w: %s: expected %s, got %s", ErrMismatch, filepath.Base(path), expected, actual)
	}
	return nil
}

// SidecarPath is the checksum file written next to path for algo.
func SidecarPath(path string, algo Algorithm) string {
	return path + "." + algo.String()
}

// WriteSidecar hashes path and writes "<hex>  <basename>\n" to its sidecar,
// the layout sha256sum and friends read. It returns the prefixed checksum.
func WriteSidecar(path string, algo Algorithm) (string, error) {
	sum, err := CalculateFile(path, algo)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	line := fmt.Sprintf("%s  %s\n", hexPart(sum), filepath.Base(path))
	if err := os.WriteFile(SidecarPath(path, algo), []byte(line), 0o644); err != nil {
		return "", fmt.Errorf("writing checksum file: %w", err)
	}
	return sum, nil
}

// VerifySidecar looks for a sidecar of any supported algorithm next to path,
// strongest first, and verifies path against it. It returns the checksum that
// matched. A missing sidecar is reported as os.ErrNotExist.
func VerifySidecar(path string) (string, error) {
	for _, algo := range []Algorithm{SHA512, Blake2b, SHA256, Adler32} {
		f, err := os.Open(SidecarPath(path, algo))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}

		want, err := readSidecar(f, filepath.Base(path))
		f.Close()
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", SidecarPath(path, algo), err)
		}

		expected := algo.String() + ":" + want
		if err := VerifyFile(path, expected); err != nil {
			return "", err
		}
		return expected, nil
	}
	return "", fmt.Errorf("no checksum file for %s: %w", filepath.Base(path), os.ErrNotExist)
}

func readSidecar(r io.Reader, name string) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		// "*name" marks binary mode in the coreutils format.
		if len(fields) == 1 || strings.TrimPrefix(fields[1], "*") == name {
			return strings.ToLower(fields[0]), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no entry for %s", name)
}

func hexPart(sum string) string {
	if _, value, ok := strings.Cut(sum, ":"); ok {
		return value
	}
	return sum
}
