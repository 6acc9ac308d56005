package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "mfgames-doap.schema.json"

// namePattern is what a package name may look like. Names become path
// elements under the install prefix, so separators and leading dots are out.
const namePattern = `^[A-Za-z0-9][A-Za-z0-9._-]*$`

var nameRE = regexp.MustCompile(namePattern)

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "required": ["name", "version", "description", "author", "url", "scripts"],
  "properties": {
    "name":        {"type": "string", "minLength": 1, "pattern": "` + namePattern + `"},
    "version":     {"type": "string", "minLength": 1},
    "description": {"type": "string", "minLength": 1},
    "author":      {"type": "string", "minLength": 1},
    "url":         {"type": "string", "minLength": 1, "format": "uri"},
    "scripts": {
      "type": "array",
      "minItems": 1,
      "uniqueItems": true,
      "items": {"type": "string", "minLength": 1}
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		c.AssertFormat = true
		if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("loading manifest schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Validate checks md and returns a *ValidationError listing every problem, or
// nil. Script paths are resolved against root; an empty root skips the
// filesystem checks but still rejects paths that leave the project.
func (md *Metadata) Validate(root string) error {
	var problems []string

	schemaProblems, err := md.schemaProblems()
	if err != nil {
		return err
	}
	problems = append(problems, schemaProblems...)

	if md.Version != "" {
		if _, err := semver.NewVersion(md.Version); err != nil {
			problems = append(problems, fmt.Sprintf("version %q: %v", md.Version, err))
		}
	}

	for _, script := range md.Scripts {
		if script == "" {
			continue
		}
		if problem := checkScript(root, script); problem != "" {
			problems = append(problems, problem)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}

// ValidName reports whether name is usable as a package name.
func ValidName(name string) bool {
	return nameRE.MatchString(name)
}

// ParsedVersion returns the version as a semantic version.
func (md *Metadata) ParsedVersion() (*semver.Version, error) {
	return semver.NewVersion(md.Version)
}

func (md *Metadata) schemaProblems() ([]string, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(md)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	err = sch.Validate(doc)
	if err == nil {
		return nil, nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, fmt.Errorf("validating manifest: %w", err)
	}

	var problems []string
	collectLeaves(verr, &problems)
	sort.Strings(problems)
	return problems, nil
}

func collectLeaves(verr *jsonschema.ValidationError, out *[]string) {
	if len(verr.Causes) == 0 {
		location := strings.TrimPrefix(verr.InstanceLocation, "/")
		if location == "" {
			location = "manifest"
		}
		*out = append(*out, fmt.Sprintf("%s: %s", location, verr.Message))
		return
	}
	for _, cause := range verr.Causes {
		collectLeaves(cause, out)
	}
}

func checkScript(root, script string) string {
	if !filepath.IsLocal(filepath.FromSlash(script)) {
		return fmt.Sprintf("script %q must be a relative path inside the project", script)
	}
	if root == "" {
		return ""
	}

	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(script)))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Sprintf("script %q does not exist", script)
	case err != nil:
		return fmt.Sprintf("script %q: %v", script, err)
	case !info.Mode().IsRegular():
		return fmt.Sprintf("script %q is not a regular file", script)
	}
	return ""
}
