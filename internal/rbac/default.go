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

// -----------------------------------------------------------------------------
// Role Permission Mappings
// The canonical grant set for every role. Every role defines every module.
// -----------------------------------------------------------------------------

// MasterAdminPermissions defines permissions for the master_admin role.
var MasterAdminPermissions = ModulePermissionSet{
	ModuleDashboard:            Full,
	ModuleProducts:             Full,
	ModuleCertifiedRefurbished: Full,
	ModuleLeads:                Full,
	ModuleFinance:              Full,
	ModuleCibil:                Full,
	ModuleAnalytics:            Full,
	ModuleBanners:              Full,
	ModuleSettings:             Full,
	ModuleDealers:              Full,
	ModuleUsers:                Full,
	ModuleMediaLibrary:         Full,
	ModuleOffersSchemes:        Full,
	ModuleContentPages:         Full,
}

// AdminPermissions defines permissions for the admin role.
var AdminPermissions = ModulePermissionSet{
	ModuleDashboard:            Full,
	ModuleProducts:             Full,
	ModuleCertifiedRefurbished: Full,
	ModuleLeads:                Full,
	ModuleFinance:              Full,
	ModuleCibil:                Full,
	ModuleAnalytics:            Full,
	ModuleBanners:              Full,
	ModuleSettings:             ReadOnly,
	ModuleDealers:              Full,
	ModuleUsers:                None,
	ModuleMediaLibrary:         Full,
	ModuleOffersSchemes:        Full,
	ModuleContentPages:         Full,
}

// SalesUserPermissions defines permissions for the sales_user role.
var SalesUserPermissions = ModulePermissionSet{
	ModuleDashboard:            ReadOnly,
	ModuleProducts:             None,
	ModuleCertifiedRefurbished: None,
	ModuleLeads:                SalesLead,
	ModuleFinance:              SalesLead,
	ModuleCibil:                None,
	ModuleAnalytics:            ReadOnly,
	ModuleBanners:              None,
	ModuleSettings:             None,
	ModuleDealers:              ReadOnly,
	ModuleUsers:                None,
	ModuleMediaLibrary:         None,
	ModuleOffersSchemes:        None,
	ModuleContentPages:         None,
}

// Default is the canonical authorization matrix.
var Default = MustMatrix(map[Role]ModulePermissionSet{
	RoleMasterAdmin: MasterAdminPermissions,
	RoleAdmin:       AdminPermissions,
	RoleSalesUser:   SalesUserPermissions,
})

// HasPermission checks role against the default matrix.
func HasPermission(role Role, module Module, action Action) bool {
	return Default.HasPermission(role, module, action)
}

func CanView(role Role, module Module) bool   { return Default.CanView(role, module) }
func CanCreate(role Role, module Module) bool { return Default.CanCreate(role, module) }
func CanEdit(role Role, module Module) bool   { return Default.CanEdit(role, module) }
func CanDelete(role Role, module Module) bool { return Default.CanDelete(role, module) }
func CanExport(role Role, module Module) bool { return Default.CanExport(role, module) }

// AccessibleModules lists the modules role can view in menu order.
func AccessibleModules(role Role) []Module {
	return Default.AccessibleModules(role)
}

// ResolveEffectivePermissions resolves subject against the default matrix.
func ResolveEffectivePermissions(subject Subject) ModulePermissionSet {
	return Default.ResolveEffectivePermissions(subject)
}
