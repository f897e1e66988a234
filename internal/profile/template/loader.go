// Package template loads shipped interaction-profile definitions from YAML
// files on disk into profile.Template values, and exposes a JSON schema for
// those files. Grounded on the teacher's internal/cli config-loading pattern
// of yaml.v3 unmarshal followed by a validator pass; here that pass is a
// hand check of the required fields (profilePath and at least one
// binding), and files are not validated against the schema.
package template

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/ixrcore/runtime/internal/profile"
)

// Schema returns a JSON schema for shipped profile YAML files, generated
// from profile.Template's jsonschema struct tags. LoadFile does not apply it.
func Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	return r.Reflect(&profile.Template{})
}

// LoadDir parses every *.yaml file in dir as a profile.Template.
func LoadDir(dirFS fs.FS, dir string) ([]*profile.Template, error) {
	entries, err := fs.ReadDir(dirFS, dir)
	if err != nil {
		return nil, fmt.Errorf("template.LoadDir: reading %s: %w", dir, err)
	}

	var out []*profile.Template
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		tpl, err := LoadFile(dirFS, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}

// LoadFile parses a single shipped profile YAML file.
func LoadFile(dirFS fs.FS, path string) (*profile.Template, error) {
	raw, err := fs.ReadFile(dirFS, path)
	if err != nil {
		return nil, fmt.Errorf("template.LoadFile: reading %s: %w", path, err)
	}

	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("template.LoadFile: parsing %s: %w", path, err)
	}

	var tpl profile.Template
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &tpl,
		WeaklyTypedInput: true,
		TagName:          "yaml",
	})
	if err != nil {
		return nil, fmt.Errorf("template.LoadFile: building decoder: %w", err)
	}
	if err := dec.Decode(generic); err != nil {
		return nil, fmt.Errorf("template.LoadFile: decoding %s: %w", path, err)
	}

	tpl.ResolveSubActions()

	if tpl.ProfilePath == "" {
		return nil, fmt.Errorf("template.LoadFile: %s: profilePath is required", path)
	}
	if len(tpl.Bindings) == 0 {
		return nil, fmt.Errorf("template.LoadFile: %s: at least one binding is required", path)
	}

	return &tpl, nil
}
