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

// Package accounts implements the credential store, the per-account lockout
// state machine and the authenticator on top of both.
package accounts

import (
	"github.com/redrock-project/redrock/server/definitions"
)

// Account is the durable identity record. The Password field holds the
// crypt-formatted hash and is never serialized into API responses; the
// handlers build response payloads explicitly.
type Account struct {
	ID        string `json:"Id"`
	UserName  string `json:"UserName"`
	Password  string `json:"Password"`
	RoleID    string `json:"RoleId"`
	Enabled   bool   `json:"Enabled"`
	Deletable bool   `json:"Deletable"`
}

// Role is the durable authorization template. Predefined roles are immutable
// and cannot be deleted.
type Role struct {
	ID                 string                 `json:"RoleId"`
	Name               string                 `json:"Name"`
	Description        string                 `json:"Description"`
	IsPredefined       bool                   `json:"IsPredefined"`
	AssignedPrivileges definitions.Privileges `json:"AssignedPrivileges"`
}

// ServiceSettings are the PATCHable account-service properties persisted in
// the AccountServiceDb file. Durations are in seconds, as on the wire.
type ServiceSettings struct {
	AuthFailureLoggingThreshold     int `json:"AuthFailureLoggingThreshold"`
	MinPasswordLength               int `json:"MinPasswordLength"`
	MaxPasswordLength               int `json:"MaxPasswordLength"`
	AccountLockoutThreshold         int `json:"AccountLockoutThreshold"`
	AccountLockoutDuration          int `json:"AccountLockoutDuration"`
	AccountLockoutCounterResetAfter int `json:"AccountLockoutCounterResetAfter"`
}

// Identity is a resolved authentication result: who the caller is and what
// they may do. Privileges are a snapshot taken at resolution time.
type Identity struct {
	AccountID  string
	Username   string
	RoleID     string
	Privileges definitions.Privileges
}

// HasPrivilege reports whether the identity carries the given privilege.
func (i Identity) HasPrivilege(privilege definitions.Privilege) bool {
	return i.Privileges.Has(privilege)
}
