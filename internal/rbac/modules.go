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

// Module identifies a functional area of the console that is access controlled
// on its own.
type Module string

const (
	ModuleDashboard            Module = "dashboard"
	ModuleProducts             Module = "products"
	ModuleCertifiedRefurbished Module = "certifiedRefurbished"
	ModuleLeads                Module = "leads"
	ModuleFinance              Module = "finance"
	ModuleCibil                Module = "cibil"
	ModuleAnalytics            Module = "analytics"
	ModuleDealers              Module = "dealers"
	ModuleMediaLibrary         Module = "mediaLibrary"
	ModuleOffersSchemes        Module = "offersSchemes"
	ModuleContentPages         Module = "contentPages"
	ModuleBanners              Module = "banners"
	ModuleSettings             Module = "settings"
	ModuleUsers                Module = "users"
)

type moduleInfo struct {
	module Module
	label  string
	path   string
}

// moduleTable is in canonical menu order.
var moduleTable = []moduleInfo{
	{ModuleDashboard, "Dashboard", "/admin"},
	{ModuleProducts, "Products", "/admin/products"},
	{ModuleCertifiedRefurbished, "Certified Refurbished", "/admin/certified-refurbished"},
	{ModuleLeads, "Leads", "/admin/leads"},
	{ModuleFinance, "Finance Applications", "/admin/finance"},
	{ModuleCibil, "CIBIL", "/admin/cibil"},
	{ModuleAnalytics, "Reports / Analytics", "/admin/analytics"},
	{ModuleDealers, "Dealer Locator", "/admin/dealers"},
	{ModuleMediaLibrary, "Media Library", "/admin/media-library"},
	{ModuleOffersSchemes, "Offers & Schemes", "/admin/offers-schemes"},
	{ModuleContentPages, "Content Pages", "/admin/content-pages"},
	{ModuleBanners, "Banners", "/admin/banners"},
	{ModuleSettings, "Settings", "/admin/settings"},
	{ModuleUsers, "User Management", "/admin/users"},
}

var moduleIndex = func() map[Module]int {
	idx := make(map[Module]int, len(moduleTable))
	for i, info := range moduleTable {
		idx[info.module] = i
	}
	return idx
}()

// Modules returns every module in canonical menu order.
func Modules() []Module {
	out := make([]Module, len(moduleTable))
	for i, info := range moduleTable {
		out[i] = info.module
	}
	return out
}

// Valid reports whether m is one of the known modules.
func (m Module) Valid() bool {
	_, ok := moduleIndex[m]
	return ok
}

// Label returns the menu label, or the raw value for unknown modules.
func (m Module) Label() string {
	if i, ok := moduleIndex[m]; ok {
		return moduleTable[i].label
	}
	return string(m)
}

// Path returns the console route of the module's top-level screen.
// Unknown modules have no path.
func (m Module) Path() string {
	if i, ok := moduleIndex[m]; ok {
		return moduleTable[i].path
	}
	return ""
}

func (m Module) String() string {
	return string(m)
}

// ParseModule converts an untrusted string into a Module.
func ParseModule(s string) (Module, error) {
	m := Module(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownModule, s)
	}
	return m, nil
}

// ModuleForPath returns the module owning a console path. The longest matching
// prefix wins, so "/admin/leads/42" belongs to leads and "/admin" to dashboard.
func ModuleForPath(path string) (Module, bool) {
	var best moduleInfo
	found := false
	for _, info := range moduleTable {
		if !pathHasPrefix(path, info.path) {
			continue
		}
		if !found || len(info.path) > len(best.path) {
			best = info
			found = true
		}
	}
	return best.module, found
}

func pathHasPrefix(path, prefix string) bool {
	if len(path) < len(prefix) || path[:len(prefix)] != prefix {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
