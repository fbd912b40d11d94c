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
	"net/http"
)

// Action is the operation being authorized within a module.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
)

var actions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionExport}

// Actions returns every known action.
func Actions() []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete, ActionExport:
		return true
	}
	return false
}

func (a Action) String() string {
	return string(a)
}

// ParseAction converts an untrusted string into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// ActionForMethod maps an HTTP method to the action it performs on a module's
// API. Methods that do not map to an action report false.
func ActionForMethod(method string) (Action, bool) {
	switch method {
	case http.MethodGet, http.MethodHead:
		return ActionView, true
	case http.MethodPost:
		return ActionCreate, true
	case http.MethodPut, http.MethodPatch:
		return ActionEdit, true
	case http.MethodDelete:
		return ActionDelete, true
	}
	return "", false
}

// Permission holds one explicit grant per action. The zero value denies
// everything, and no flag implies another: Edit does not imply View.
type Permission struct {
	View   bool `json:"view" yaml:"view"`
	Create bool `json:"create" yaml:"create"`
	Edit   bool `json:"edit" yaml:"edit"`
	Delete bool `json:"delete" yaml:"delete"`
	Export bool `json:"export" yaml:"export"`
}

// Common permission presets
var (
	// Full grants every action.
	Full = Permission{View: true, Create: true, Edit: true, Delete: true, Export: true}

	// ReadOnly grants view only.
	ReadOnly = Permission{View: true}

	// None denies everything.
	None = Permission{}

	// SalesLead lets sales staff work their pipeline without deleting records.
	SalesLead = Permission{View: true, Create: true, Edit: true, Export: true}
)

var presets = map[string]Permission{
	"full":       Full,
	"read_only":  ReadOnly,
	"none":       None,
	"sales_lead": SalesLead,
}

// PresetPermission returns the named preset.
func PresetPermission(name string) (Permission, bool) {
	p, ok := presets[name]
	return p, ok
}

// Allows reports whether the permission grants action. Unknown actions are denied.
func (p Permission) Allows(action Action) bool {
	switch action {
	case ActionView:
		return p.View
	case ActionCreate:
		return p.Create
	case ActionEdit:
		return p.Edit
	case ActionDelete:
		return p.Delete
	case ActionExport:
		return p.Export
	}
	return false
}

// ModulePermissionSet maps modules to their permission.
// A module missing from the set has no access.
type ModulePermissionSet map[Module]Permission

// Get returns the permission for module and whether it is defined.
func (s ModulePermissionSet) Get(module Module) (Permission, bool) {
	if s == nil {
		return None, false
	}
	p, ok := s[module]
	return p, ok
}

// Allows reports whether the set grants action on module.
func (s ModulePermissionSet) Allows(module Module, action Action) bool {
	p, ok := s.Get(module)
	if !ok {
		return false
	}
	return p.Allows(action)
}

// Clone returns a copy that does not share storage with s.
func (s ModulePermissionSet) Clone() ModulePermissionSet {
	if s == nil {
		return nil
	}
	out := make(ModulePermissionSet, len(s))
	for m, p := range s {
		out[m] = p
	}
	return out
}

// Validate rejects sets keyed by unknown modules.
func (s ModulePermissionSet) Validate() error {
	for m := range s {
		if !m.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownModule, m)
		}
	}
	return nil
}

// Complete reports whether every known module is defined.
func (s ModulePermissionSet) Complete() bool {
	for _, m := range Modules() {
		if _, ok := s[m]; !ok {
			return false
		}
	}
	return true
}
