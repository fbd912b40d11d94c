// Copyright 2026 The Backoffice Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rbac

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// matrixFile is the on-disk shape of a matrix:
//
//	roles:
//	  admin:
//	    dashboard: full
//	    settings: {view: true}
type matrixFile struct {
	Roles map[Role]ModulePermissionSet `yaml:"roles"`
}

// UnmarshalYAML accepts either a preset name or a mapping of action flags.
// Actions left out of the mapping are denied.
func (p *Permission) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		preset, ok := PresetPermission(node.Value)
		if !ok {
			return fmt.Errorf("%w: unknown preset %q (line %d)", ErrInvalidPermission, node.Value, node.Line)
		}
		*p = preset
		return nil

	case yaml.MappingNode:
		var out Permission
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			action, err := ParseAction(key.Value)
			if err != nil {
				return fmt.Errorf("%w (line %d)", err, key.Line)
			}
			var allowed bool
			if err := value.Decode(&allowed); err != nil {
				return fmt.Errorf("%w: %s must be a boolean (line %d)", ErrInvalidPermission, action, value.Line)
			}
			switch action {
			case ActionView:
				out.View = allowed
			case ActionCreate:
				out.Create = allowed
			case ActionEdit:
				out.Edit = allowed
			case ActionDelete:
				out.Delete = allowed
			case ActionExport:
				out.Export = allowed
			}
		}
		*p = out
		return nil
	}

	return fmt.Errorf("%w: expected preset or mapping (line %d)", ErrInvalidPermission, node.Line)
}

// ParseMatrix builds a matrix from YAML. The result is subject to the same
// completeness rules as NewMatrix.
func ParseMatrix(data []byte) (*Matrix, error) {
	var f matrixFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse matrix: %w", err)
	}
	return NewMatrix(f.Roles)
}

// LoadMatrix reads a matrix from a YAML file.
func LoadMatrix(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read matrix file %s: %w", path, err)
	}
	m, err := ParseMatrix(data)
	if err != nil {
		return nil, fmt.Errorf("matrix file %s: %w", path, err)
	}
	return m, nil
}
