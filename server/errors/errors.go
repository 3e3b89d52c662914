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

package errors

import (
	"errors"
)

// authentication.

var (
	// ErrUsernameNotFound means the username maps to no account. It is kept
	// distinct from ErrPasswordIncorrect on purpose: the original service
	// reported unknown usernames as Not Found in the authentication path.
	ErrUsernameNotFound = errors.New("username not found")

	ErrAccountDisabled = errors.New("account disabled")

	// ErrAccountLocked is returned while a lockout is in force. The password
	// is not evaluated in this state.
	ErrAccountLocked = errors.New("account locked by service")

	ErrPasswordIncorrect = errors.New("password incorrect")

	// ErrPasswordIncorrectNowLocked is the failure that crossed the lockout
	// threshold and locked the account as a side effect.
	ErrPasswordIncorrectNowLocked = errors.New("password incorrect, account is now locked by service")

	ErrMissingCredentials = errors.New("no credentials supplied")
)

// sessions.

var (
	ErrSessionNotFound = errors.New("session not found")

	// ErrTokenMismatch means a session was addressed by identifier but the
	// supplied token belongs to a different session.
	ErrTokenMismatch = errors.New("auth token does not match session")

	// ErrInvalidSessionLookup marks a call with neither identifier nor
	// token. This is a programming error, not a client failure.
	ErrInvalidSessionLookup = errors.New("session lookup without identifier or token")

	ErrNoLoginPrivilege = errors.New("account does not have the Login privilege")
)

// accounts and roles.

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrUsernameExists      = errors.New("username already exists")
	ErrAccountNotDeletable = errors.New("account cannot be deleted")

	ErrRoleNotFound   = errors.New("role not found")
	ErrRoleExists     = errors.New("role already exists")
	ErrRolePredefined = errors.New("predefined roles cannot be modified or deleted")

	// ErrRoleInUse rejects deletion of a role still referenced by an account.
	ErrRoleInUse = errors.New("role is referenced by an existing account")

	ErrInvalidPrivilege = errors.New("invalid privilege")
	ErrPasswordPolicy   = errors.New("password does not meet the password policy")
	ErrUsernamePolicy   = errors.New("username must not contain whitespace or colon characters")
)

// authorization.

var (
	ErrInsufficientPrivileges = errors.New("insufficient privileges")

	// ErrNotSelf rejects a self-service operation whose target is a
	// different account.
	ErrNotSelf = errors.New("self-service operation targets a different account")
)

// persistence.

var (
	ErrPersistFailed = errors.New("writing database file failed")
)
