package main

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/mfgames/mfgames-doap/pkg/dist/codec"
)

// formatsValue is a comma-separated list of archive formats.
type formatsValue struct {
	codecs []codec.Codec
}

var _ pflag.Value = (*formatsValue)(nil)

func newFormatsValue(defaults ...string) *formatsValue {
	v := &formatsValue{}
	for _, name := range defaults {
		// Defaults are compile-time names.
		if c, err := codec.Lookup(name); err == nil {
			v.codecs = append(v.codecs, c)
		}
	}
	return v
}

func (v *formatsValue) String() string {
	names := make([]string, len(v.codecs))
	for i, c := range v.codecs {
		names[i] = c.Name()
	}
	return strings.Join(names, ",")
}

func (v *formatsValue) Set(s string) error {
	var codecs []codec.Codec
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := codec.Lookup(part)
		if err != nil {
			return err
		}
		if !seen[c.Name()] {
			seen[c.Name()] = true
			codecs = append(codecs, c)
		}
	}
	v.codecs = codecs
	return nil
}

func (v *formatsValue) Type() string {
	return "formats"
}
