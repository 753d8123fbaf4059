package workflow

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the workflow document at path, resolving every
// step's Path relative to the document's own directory and, if
// expandEnv is true, expanding $VAR references in string config values.
// Unknown fields in the document's own tables ([options], [[import]],
// [[graph_op]], [[export]]) are rejected by go-toml's strict decoder, so
// the loader never hand-rolls field checking. The keys inside each step's
// free-form config table are not checked here.
func Load(path string, expandEnv bool) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var plan Plan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("workflow: parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i := range plan.Imports {
		plan.Imports[i].Path = resolvePath(dir, plan.Imports[i].Path)
		if expandEnv {
			expandConfig(plan.Imports[i].Config)
		}
	}
	for i := range plan.GraphOps {
		if expandEnv {
			expandConfig(plan.GraphOps[i].Config)
		}
	}
	for i := range plan.Exports {
		plan.Exports[i].Path = resolvePath(dir, plan.Exports[i].Path)
		if expandEnv {
			expandConfig(plan.Exports[i].Config)
		}
	}

	if err := validate(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func validate(plan *Plan) error {
	for i, step := range plan.Imports {
		if step.Format == "" {
			return fmt.Errorf("workflow: import[%d]: format is required", i)
		}
		if step.Path == "" {
			return fmt.Errorf("workflow: import[%d]: path is required", i)
		}
	}
	for i, step := range plan.GraphOps {
		if step.Action == "" {
			return fmt.Errorf("workflow: graph_op[%d]: action is required", i)
		}
	}
	for i, step := range plan.Exports {
		if step.Format == "" {
			return fmt.Errorf("workflow: export[%d]: format is required", i)
		}
		if step.Path == "" {
			return fmt.Errorf("workflow: export[%d]: path is required", i)
		}
	}
	return nil
}

var envRefPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandConfig replaces $VAR references in every string value of a config
// table, recursively through nested tables, in place.
func expandConfig(cfg map[string]any) {
	for k, v := range cfg {
		cfg[k] = expandValue(v)
	}
}

func expandValue(v any) any {
	switch val := v.(type) {
	case string:
		return envRefPattern.ReplaceAllStringFunc(val, func(ref string) string {
			name := ref[1:]
			if expanded, ok := os.LookupEnv(name); ok {
				return expanded
			}
			return ref
		})
	case map[string]any:
		expandConfig(val)
		return val
	case []any:
		for i, e := range val {
			val[i] = expandValue(e)
		}
		return val
	default:
		return v
	}
}
