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
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/simia-tech/crypt"
	"golang.org/x/crypto/bcrypt"
)

// saltAlphabet is the character set crypt(3) accepts in salt strings.
const saltAlphabet = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const sha512CryptSaltLength = 16

// ComparePasswords takes a plain password and creates a hash. Then it compares
// the hashed passwords and returns true, if both passwords are equal. If an
// error occurs, the result is false for the compare operation and the error is
// returned. This function uses constant-time comparison to prevent timing
// attacks.
//
// Supported stored formats: sha256-crypt ($5$), sha512-crypt ($6$) and bcrypt.
func ComparePasswords(hashPassword string, plainPassword string) (bool, error) {
	if strings.HasPrefix(hashPassword, "$2") {
		err := bcrypt.CompareHashAndPassword([]byte(hashPassword), []byte(plainPassword))
		if err != nil {
			if err == bcrypt.ErrMismatchedHashAndPassword {
				return false, nil
			}

			return false, err
		}

		return true, nil
	}

	_, _, _, pwhash, err := crypt.DecodeSettings(hashPassword)
	if err != nil {
		return false, err
	}

	settings, _, found := strings.Cut(hashPassword, pwhash)
	if !found {
		return false, fmt.Errorf("unsupported password hash format")
	}

	encoded, err := crypt.Crypt(plainPassword, settings)
	if err != nil {
		return false, err
	}

	// Use subtle.ConstantTimeCompare for secure comparison
	return subtle.ConstantTimeCompare([]byte(encoded), []byte(hashPassword)) == 1, nil
}

// HashPassword creates the stored representation of a new plain password.
// The write format is sha512-crypt with a random 16-character salt, so
// credentials stay verifiable by any crypt(3)-compatible consumer.
func HashPassword(plainPassword string) (string, error) {
	salt, err := generateSalt(sha512CryptSaltLength)
	if err != nil {
		return "", err
	}

	return crypt.Crypt(plainPassword, "$6$rounds=5000$"+salt+"$")
}

func generateSalt(length int) (string, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	salt := make([]byte, length)
	for i, b := range raw {
		salt[i] = saltAlphabet[int(b)%len(saltAlphabet)]
	}

	return string(salt), nil
}
