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

package util

import (
	"regexp"
)

// Usernames and passwords travel inside the Basic authorization header,
// which uses ':' as the credential separator; whitespace is equally illegal.
var credentialPattern = regexp.MustCompile(`^[^\s:]+$`)

// ValidUserName reports whether a username contains neither whitespace nor
// colon characters and is non-empty.
func ValidUserName(username string) bool {
	return credentialPattern.MatchString(username)
}

// ValidPasswordChars reports whether a plain password is free of whitespace
// and colon characters.
func ValidPasswordChars(password string) bool {
	return credentialPattern.MatchString(password)
}
