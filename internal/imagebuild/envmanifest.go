// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxEnvironmentManifestSize bounds the manifest read.
const maxEnvironmentManifestSize = 1 << 20

// ErrInvalidEnvironmentManifest is the sentinel for unusable environment.yml files.
var ErrInvalidEnvironmentManifest = errors.New("invalid environment manifest")

type (
	// EnvironmentManifest is a conda environment.yml.
	EnvironmentManifest struct {
		Name         string       `yaml:"name"`
		Channels     []string     `yaml:"channels,omitempty"`
		Dependencies []Dependency `yaml:"dependencies"`
	}

	// Dependency is one entry of the dependencies list: either a conda
	// match spec ("python=3.10") or a nested pip section.
	Dependency struct {
		Spec string
		Pip  []string
	}
)

// UnmarshalYAML accepts a scalar match spec or a {pip: [...]} mapping.
func (d *Dependency) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		d.Spec = strings.TrimSpace(node.Value)
		if d.Spec == "" {
			return fmt.Errorf("line %d: empty dependency", node.Line)
		}
		return nil
	case yaml.MappingNode:
		var section struct {
			Pip []string `yaml:"pip"`
		}
		if err := node.Decode(&section); err != nil {
			return err
		}
		if section.Pip == nil {
			return fmt.Errorf("line %d: only a pip section may appear as a mapping", node.Line)
		}
		d.Pip = section.Pip
		return nil
	default:
		return fmt.Errorf("line %d: dependency must be a string or a pip section", node.Line)
	}
}

// MarshalYAML writes the entry back in its original shape.
func (d Dependency) MarshalYAML() (any, error) {
	if d.Pip != nil {
		return map[string][]string{"pip": d.Pip}, nil
	}
	return d.Spec, nil
}

// ParseEnvironmentManifest decodes and validates environment.yml content.
func ParseEnvironmentManifest(data []byte) (*EnvironmentManifest, error) {
	var m EnvironmentManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvironmentManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadEnvironmentManifest reads and parses the manifest at path.
func LoadEnvironmentManifest(path string) (*EnvironmentManifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvironmentManifest, err)
	}
	if info.Size() > maxEnvironmentManifestSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrInvalidEnvironmentManifest, path, info.Size(), maxEnvironmentManifestSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvironmentManifest, err)
	}
	m, err := ParseEnvironmentManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Validate requires a name and at least one dependency.
func (m *EnvironmentManifest) Validate() error {
	var errs []error
	if strings.TrimSpace(m.Name) == "" {
		errs = append(errs, errors.New("name must not be empty"))
	} else if strings.ContainsAny(m.Name, " /\\:#") {
		errs = append(errs, fmt.Errorf("name %q contains characters conda does not allow", m.Name))
	}
	if len(m.Dependencies) == 0 {
		errs = append(errs, errors.New("dependencies must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidEnvironmentManifest, errors.Join(errs...))
	}
	return nil
}

// CondaSpecs returns the conda dependencies, excluding the pip section.
func (m *EnvironmentManifest) CondaSpecs() []string {
	var specs []string
	for _, d := range m.Dependencies {
		if d.Spec != "" {
			specs = append(specs, d.Spec)
		}
	}
	return specs
}

// HasPackage reports whether a conda dependency names pkg, ignoring version
// constraints and channel prefixes.
func (m *EnvironmentManifest) HasPackage(pkg string) bool {
	for _, spec := range m.CondaSpecs() {
		if _, after, ok := strings.Cut(spec, "::"); ok {
			spec = after
		}
		name := strings.FieldsFunc(spec, func(r rune) bool {
			return strings.ContainsRune("=<>!~ [", r)
		})
		if len(name) > 0 && name[0] == pkg {
			return true
		}
	}
	return false
}
