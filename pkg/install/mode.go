package install

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultMode is applied to installed scripts when Installer.Mode is zero.
const DefaultMode os.FileMode = 0o755

// ParseMode parses an octal permission string such as "755", "0755" or
// "0o755". An empty string yields DefaultMode. The owner must keep execute
// permission, otherwise the installed script could not be run.
func ParseMode(s string) (os.FileMode, error) {
	if s == "" {
		return DefaultMode, nil
	}

	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0o"), "0")
	if trimmed == "" {
		trimmed = "0"
	}

	val, err := strconv.ParseUint(trimmed, 8, 32)
	if err != nil || val > 0o777 {
		return 0, fmt.Errorf("invalid mode %q: want an octal permission like 0755", s)
	}

	mode := os.FileMode(val)
	if mode&0o100 == 0 {
		return 0, fmt.Errorf("mode %s leaves the script unexecutable by its owner", FormatMode(mode))
	}
	return mode, nil
}

// FormatMode renders a permission as a leading-zero octal string.
func FormatMode(mode os.FileMode) string {
	return fmt.Sprintf("0%o", mode.Perm())
}
