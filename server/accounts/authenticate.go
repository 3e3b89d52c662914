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

package accounts

import (
	stderrors "errors"

	"github.com/redrock-project/redrock/server/errors"
	"github.com/redrock-project/redrock/server/log"
	"github.com/redrock-project/redrock/server/util"
)

// Authenticator verifies username/password credentials against the store,
// subject to the lockout state machine.
type Authenticator struct {
	store   *Store
	tracker *Tracker
}

// NewAuthenticator wires the credential store and the lockout tracker.
func NewAuthenticator(store *Store, tracker *Tracker) *Authenticator {
	return &Authenticator{store: store, tracker: tracker}
}

// Tracker exposes the lockout tracker shared with the account handlers.
func (a *Authenticator) Tracker() *Tracker {
	return a.tracker
}

// Authenticate resolves the credentials to an identity. The returned identity
// carries a snapshot of the role's privileges taken now; later role edits do
// not affect it.
//
// An unknown username and a disabled account fail before the lockout state
// machine runs, so neither advances failure counters nor consumes a lockout
// check.
func (a *Authenticator) Authenticate(username string, password string) (Identity, error) {
	accountID, err := a.store.FindAccountByUsername(username)
	if err != nil {
		return Identity{}, err
	}

	acct, err := a.store.GetAccount(accountID)
	if err != nil {
		return Identity{}, err
	}

	if !acct.Enabled {
		return Identity{}, errors.ErrAccountDisabled
	}

	settings := a.store.Settings()

	err = a.tracker.Attempt(accountID, settings, func() (bool, error) {
		return util.ComparePasswords(acct.Password, password)
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrPasswordIncorrect) || stderrors.Is(err, errors.ErrPasswordIncorrectNowLocked) {
			log.Logger.Info("authentication failed",
				"username", username,
				"account_id", accountID,
			)
		}

		return Identity{}, err
	}

	role, err := a.store.GetRole(acct.RoleID)
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		AccountID:  accountID,
		Username:   acct.UserName,
		RoleID:     acct.RoleID,
		Privileges: role.AssignedPrivileges.Clone(),
	}, nil
}
