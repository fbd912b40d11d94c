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

import "fmt"

// Matrix is the immutable Role -> Module -> Permission table.
// It is never mutated after construction, so concurrent readers need no locking.
type Matrix struct {
	grants map[Role]ModulePermissionSet
}

// Subject is anything that carries a role and, optionally, its own per-module
// overrides.
type Subject interface {
	SubjectRole() Role
	PermissionOverrides() ModulePermissionSet
}

// NewMatrix builds a matrix from grants. Every known role must be present and
// must define every known module; unknown roles or modules are rejected.
// The input is copied.
func NewMatrix(grants map[Role]ModulePermissionSet) (*Matrix, error) {
	m := &Matrix{grants: make(map[Role]ModulePermissionSet, len(grants))}

	for role, set := range grants {
		if !role.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("role %s: %w", role, err)
		}
		m.grants[role] = set.Clone()
	}

	for _, role := range roles {
		set, ok := m.grants[role]
		if !ok {
			return nil, fmt.Errorf("%w: role %s has no permissions", ErrIncompleteMatrix, role)
		}
		for _, module := range Modules() {
			if _, ok := set[module]; !ok {
				return nil, fmt.Errorf("%w: role %s does not define module %s", ErrIncompleteMatrix, role, module)
			}
		}
	}

	return m, nil
}

// MustMatrix is like NewMatrix but panics on error. Intended for package-level tables.
func MustMatrix(grants map[Role]ModulePermissionSet) *Matrix {
	m, err := NewMatrix(grants)
	if err != nil {
		panic(err)
	}
	return m
}

// HasPermission reports whether role may perform action on module.
// Unknown roles, modules or actions resolve to false.
func (m *Matrix) HasPermission(role Role, module Module, action Action) bool {
	if m == nil {
		return false
	}
	set, ok := m.grants[role]
	if !ok {
		return false
	}
	return set.Allows(module, action)
}

func (m *Matrix) CanView(role Role, module Module) bool {
	return m.HasPermission(role, module, ActionView)
}

func (m *Matrix) CanCreate(role Role, module Module) bool {
	return m.HasPermission(role, module, ActionCreate)
}

func (m *Matrix) CanEdit(role Role, module Module) bool {
	return m.HasPermission(role, module, ActionEdit)
}

func (m *Matrix) CanDelete(role Role, module Module) bool {
	return m.HasPermission(role, module, ActionDelete)
}

func (m *Matrix) CanExport(role Role, module Module) bool {
	return m.HasPermission(role, module, ActionExport)
}

// AccessibleModules returns the modules role can view, in canonical menu order.
func (m *Matrix) AccessibleModules(role Role) []Module {
	out := []Module{}
	for _, module := range Modules() {
		if m.CanView(role, module) {
			out = append(out, module)
		}
	}
	return out
}

// AccessiblePaths returns the console paths of the modules role can view.
func (m *Matrix) AccessiblePaths(role Role) []string {
	modules := m.AccessibleModules(role)
	out := make([]string, 0, len(modules))
	for _, module := range modules {
		out = append(out, module.Path())
	}
	return out
}

// Permissions returns a copy of role's permission set. Unknown roles get an
// empty set.
func (m *Matrix) Permissions(role Role) ModulePermissionSet {
	if m == nil {
		return ModulePermissionSet{}
	}
	set, ok := m.grants[role]
	if !ok {
		return ModulePermissionSet{}
	}
	return set.Clone()
}

// ResolveEffectivePermissions merges the subject's overrides over its role
// default. The result defines every known module: an override wins where it
// defines the module, the role default applies otherwise, and a role the
// matrix does not know contributes no grants.
func (m *Matrix) ResolveEffectivePermissions(subject Subject) ModulePermissionSet {
	out := make(ModulePermissionSet, len(moduleTable))
	if subject == nil {
		for _, module := range Modules() {
			out[module] = None
		}
		return out
	}

	var defaults ModulePermissionSet
	if m != nil {
		defaults = m.grants[subject.SubjectRole()]
	}
	overrides := subject.PermissionOverrides()

	for _, module := range Modules() {
		if p, ok := overrides.Get(module); ok {
			out[module] = p
			continue
		}
		p, _ := defaults.Get(module)
		out[module] = p
	}
	return out
}

// Allows checks action on module against the subject's effective permissions.
func (m *Matrix) Allows(subject Subject, module Module, action Action) bool {
	if subject == nil {
		return false
	}
	if overrides := subject.PermissionOverrides(); len(overrides) == 0 {
		return m.HasPermission(subject.SubjectRole(), module, action)
	}
	return m.ResolveEffectivePermissions(subject).Allows(module, action)
}

// AccessibleModulesFor is AccessibleModules over the subject's effective permissions.
func (m *Matrix) AccessibleModulesFor(subject Subject) []Module {
	effective := m.ResolveEffectivePermissions(subject)
	out := []Module{}
	for _, module := range Modules() {
		if effective.Allows(module, ActionView) {
			out = append(out, module)
		}
	}
	return out
}
