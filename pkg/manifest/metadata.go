// Package manifest holds the package-metadata record a distribution is built
// from, and the checks that keep it well-formed.
package manifest

import (
	"bufio"
	"fmt"
	"strings"
)

// Metadata is the package-metadata record. It is built once, read by the
// packaging commands, and never mutated afterwards.
type Metadata struct {
	Name        string   `json:"name" yaml:"name"`
	Version     string   `json:"version" yaml:"version"`
	Description string   `json:"description" yaml:"description"`
	Author      string   `json:"author" yaml:"author"`
	URL         string   `json:"url" yaml:"url"`
	Scripts     []string `json:"scripts" yaml:"scripts"`
}

// FileName is the name the manifest is stored under inside a distribution.
const FileName = "mfgames-doap.json"

// PkgInfoName is the distutils metadata file at the root of a distribution.
const PkgInfoName = "PKG-INFO"

const unknown = "UNKNOWN"

// Default returns the record for mfgames-doap itself.
func Default() *Metadata {
	return &Metadata{
		Name:        "mfgames-doap",
		Version:     "0.0.0",
		Description: "Utilities for manipulating DOAP files.",
		Author:      "D. Moonfire",
		URL:         "http://mfgames.com/mfgames-doap",
		Scripts:     []string{"src/mfgames-doap"},
	}
}

// DistName is the base name of distributions built from md, "<name>-<version>".
func (md *Metadata) DistName() string {
	return md.Name + "-" + md.Version
}

// PkgInfo renders md as a Metadata-Version 1.0 PKG-INFO document.
func (md *Metadata) PkgInfo() string {
	var b strings.Builder
	field := func(key, value string) {
		if value == "" {
			value = unknown
		}
		fmt.Fprintf(&b, "%s: %s\n", key, value)
	}

	field("Metadata-Version", "1.0")
	field("Name", md.Name)
	field("Version", md.Version)
	field("Summary", md.Description)
	field("Home-page", md.URL)
	field("Author", md.Author)
	field("Author-email", "")
	field("License", "")
	field("Description", "")
	field("Platform", "")
	return b.String()
}

// ParsePkgInfo reads the fields PkgInfo writes back into a Metadata. Scripts
// are not part of PKG-INFO and are left empty. UNKNOWN values become "".
func ParsePkgInfo(text string) (*Metadata, error) {
	md := &Metadata{}
	seen := false

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed %s line: %q", PkgInfoName, line)
		}
		value = strings.TrimSpace(value)
		if value == unknown {
			value = ""
		}

		switch strings.ToLower(key) {
		case "metadata-version":
			seen = true
		case "name":
			md.Name = value
		case "version":
			md.Version = value
		case "summary":
			md.Description = value
		case "home-page":
			md.URL = value
		case "author":
			md.Author = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !seen {
		return nil, fmt.Errorf("%s has no Metadata-Version", PkgInfoName)
	}
	return md, nil
}
