// Copyright (C) 2025 The Redrock Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package definitions

// Privilege is one of the fixed Redfish capability tags granted through a
// role. The set is closed; anything outside it is rejected at the store
// boundary instead of silently never matching.
type Privilege string

const (
	PrivilegeLogin               Privilege = "Login"
	PrivilegeConfigureManager    Privilege = "ConfigureManager"
	PrivilegeConfigureUsers      Privilege = "ConfigureUsers"
	PrivilegeConfigureSelf       Privilege = "ConfigureSelf"
	PrivilegeConfigureComponents Privilege = "ConfigureComponents"
)

// AllPrivileges lists every valid privilege tag.
var AllPrivileges = []Privilege{
	PrivilegeLogin,
	PrivilegeConfigureManager,
	PrivilegeConfigureUsers,
	PrivilegeConfigureSelf,
	PrivilegeConfigureComponents,
}

// IsValid reports whether p is a member of the closed privilege enumeration.
func (p Privilege) IsValid() bool {
	switch p {
	case PrivilegeLogin, PrivilegeConfigureManager, PrivilegeConfigureUsers,
		PrivilegeConfigureSelf, PrivilegeConfigureComponents:
		return true
	}

	return false
}

// Privileges is a privilege set as resolved from a role or captured in a
// session snapshot.
type Privileges []Privilege

// Has reports whether the set contains the given privilege.
func (p Privileges) Has(privilege Privilege) bool {
	for _, candidate := range p {
		if candidate == privilege {
			return true
		}
	}

	return false
}

// HasAll reports whether every privilege in required is present in the set.
func (p Privileges) HasAll(required []Privilege) bool {
	for _, privilege := range required {
		if !p.Has(privilege) {
			return false
		}
	}

	return true
}

// Clone returns an independent copy of the set. Session snapshots must not
// alias role-owned slices, otherwise a later role PATCH would mutate them.
func (p Privileges) Clone() Privileges {
	if p == nil {
		return nil
	}

	cloned := make(Privileges, len(p))
	copy(cloned, p)

	return cloned
}

// Strings converts the set for JSON payloads and log fields.
func (p Privileges) Strings() []string {
	values := make([]string, 0, len(p))
	for _, privilege := range p {
		values = append(values, string(privilege))
	}

	return values
}

// ParsePrivileges validates a list of raw privilege names against the closed
// enumeration. The first invalid name is returned.
func ParsePrivileges(raw []string) (Privileges, string) {
	parsed := make(Privileges, 0, len(raw))

	for _, name := range raw {
		privilege := Privilege(name)
		if !privilege.IsValid() {
			return nil, name
		}

		parsed = append(parsed, privilege)
	}

	return parsed, ""
}
