// Package prefix resolves the directory tree scripts are installed into.
package prefix

import (
	"os"
	"path/filepath"
	"runtime"
)

// EnvPrefix overrides the default installation prefix.
const EnvPrefix = "MFGAMES_DOAP_PREFIX"

// Default returns the installation prefix: MFGAMES_DOAP_PREFIX when set,
// otherwise the per-user location for the platform.
func Default() string {
	if p := os.Getenv(EnvPrefix); p != "" {
		return p
	}

	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "mfgames-doap")
		}
	default:
		// XDG_DATA_HOME is normally <prefix>/share, so its parent is the prefix.
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" && filepath.Base(xdgData) == "share" {
			return filepath.Dir(xdgData)
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".local")
		}
	}

	return filepath.Join(os.TempDir(), "mfgames-doap")
}

// BinDir is where scripts are installed under root.
func BinDir(root string) string {
	return filepath.Join(root, "bin")
}

// DataDir is where install bookkeeping for a package lives under root.
func DataDir(root, name string) string {
	return filepath.Join(root, "share", name)
}
