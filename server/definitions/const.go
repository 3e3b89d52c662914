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

// Gin context keys.
const (
	// CtxGUIDKey holds the per-request GUID assigned by the logging middleware.
	CtxGUIDKey = "guid"

	// CtxIdentityKey holds the resolved identity of an authorized request.
	// It is request-scoped; nothing outside the gin context ever stores it.
	CtxIdentityKey = "auth_identity"
)

// Log keys.
const (
	LogKeyGUID      = "session"
	LogKeyMsg       = "msg"
	LogKeyError     = "error"
	LogKeyInstance  = "instance"
	LogKeyUsername  = "username"
	LogKeyAccountID = "account_id"
	LogKeyClientIP  = "client_ip"
	LogKeyMethod    = "http_method"
	LogKeyPath      = "uri_path"
	LogKeyStatus    = "http_status"
	LogKeyLatency   = "latency"
)

// HTTP headers used by the Redfish protocol surface.
const (
	// HeaderAuthToken carries the opaque session token. Tokens never appear in URIs.
	HeaderAuthToken = "X-Auth-Token"

	// HeaderFromRproxy is set by a fronting reverse proxy to "HTTP" or "HTTPS"
	// to tell the service which scheme the client actually used.
	HeaderFromRproxy = "X-Rm-From-Rproxy"

	HeaderODataVersion = "OData-Version"
	ODataVersion       = "4.0"
)

// URI bases of the served resource tree.
const (
	ServiceRootURI = "/redfish/v1"
	AccountsURI    = ServiceRootURI + "/AccountService/Accounts"
	RolesURI       = ServiceRootURI + "/AccountService/Roles"
	SessionsURI    = ServiceRootURI + "/SessionService/Sessions"
)

// Service defaults, used when a database file has to be seeded.
const (
	// DefaultSessionTimeout is the initial session inactivity timeout in seconds.
	DefaultSessionTimeout = 1800

	// SessionTimeoutMin and SessionTimeoutMax bound PATCHed SessionTimeout values.
	SessionTimeoutMin = 30
	SessionTimeoutMax = 86400

	DefaultLockoutThreshold    = 5
	DefaultLockoutDuration     = 600
	DefaultLockoutCounterReset = 300

	DefaultMinPasswordLength = 8
	DefaultMaxPasswordLength = 64

	DefaultAuthFailureLoggingThreshold = 3
)

// Built-in identifiers.
const (
	// RootAccountID is the account identifier of the built-in, non-deletable
	// administrator account.
	RootAccountID = "root"

	RoleAdministrator = "Administrator"
	RoleOperator      = "Operator"
	RoleReadOnly      = "ReadOnly"
)
