package inspect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/accessor/internal/member"
)

// Manifest lists the accessors a program builds at start-up, so they can be
// checked against the source before it runs.
//
//	package: ./internal/model
//	accessors:
//	  - type: User
//	    field: email
//	    value: string
//	    scope: nonpublic
//	  - type: User
//	    method: Save
//	  - static_method: NewUser
//	    signature: [string]
type Manifest struct {
	// Package is a go/packages pattern, resolved from the manifest's
	// directory unless the caller sets another.
	Package string `yaml:"package"`

	Accessors []Entry `yaml:"accessors"`
}

// Entry is one accessor. Exactly one of Field, Method, StaticField and
// StaticMethod is set.
type Entry struct {
	Type         string `yaml:"type,omitempty"`
	Field        string `yaml:"field,omitempty"`
	Method       string `yaml:"method,omitempty"`
	StaticField  string `yaml:"static_field,omitempty"`
	StaticMethod string `yaml:"static_method,omitempty"`

	// Value is the requested value type of a field accessor, written as a
	// type expression in the package's scope.
	Value string `yaml:"value,omitempty"`

	// Setter also checks that Value can be stored into the field.
	Setter bool `yaml:"setter,omitempty"`

	// Scope is "public", "nonpublic" or both joined with "|".
	Scope string `yaml:"scope,omitempty"`

	// Signature selects a routine by exact parameter types.
	Signature []string `yaml:"signature,omitempty"`
}

// Member returns the member name and its kind.
func (e Entry) Member() (name, kind string) {
	switch {
	case e.Field != "":
		return e.Field, "field"
	case e.Method != "":
		return e.Method, "method"
	case e.StaticField != "":
		return e.StaticField, "static_field"
	case e.StaticMethod != "":
		return e.StaticMethod, "static_method"
	}
	return "", ""
}

func (e Entry) String() string {
	name, kind := e.Member()
	if e.Type == "" {
		return kind + " " + name
	}
	return kind + " " + e.Type + "." + name
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseManifest(data, path)
}

// ParseManifest parses manifest data. path is used in error messages.
func ParseManifest(data []byte, path string) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty manifest", path)
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := m.validate(path); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate(path string) error {
	if m.Package == "" {
		return fmt.Errorf("%s: package is required", path)
	}
	for i, e := range m.Accessors {
		set := 0
		for _, name := range []string{e.Field, e.Method, e.StaticField, e.StaticMethod} {
			if name != "" {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("%s: accessors[%d]: want exactly one of field, method, static_field, static_method", path, i)
		}
		if (e.Field != "" || e.Method != "") && e.Type == "" {
			return fmt.Errorf("%s: accessors[%d]: %s needs a type", path, i, e)
		}
		if e.Value != "" && e.Field == "" && e.StaticField == "" {
			return fmt.Errorf("%s: accessors[%d]: value only applies to fields", path, i)
		}
		if e.Signature != nil && e.Method == "" && e.StaticMethod == "" {
			return fmt.Errorf("%s: accessors[%d]: signature only applies to routines", path, i)
		}
		if _, ok := member.ParseScope(e.Scope); !ok {
			return fmt.Errorf("%s: accessors[%d]: unknown scope %q", path, i, e.Scope)
		}
	}
	return nil
}
