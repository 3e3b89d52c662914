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
	"fmt"
	"sort"
	"sync"

	"github.com/redrock-project/redrock/server/definitions"
	"github.com/redrock-project/redrock/server/errors"
	"github.com/redrock-project/redrock/server/store"
)

const (
	accountsDbName       = "AccountsDb"
	rolesDbName          = "RolesDb"
	accountServiceDbName = "AccountServiceDb"
)

// defaultRootPasswordHash is sha512-crypt("calvin"), the factory credential
// of the built-in root account.
const defaultRootPasswordHash = "$6$rounds=5000$GhBzjolfXguUxGDE$z.riOCKP6.QP0gGeq1Y7W8O1YAzBZbDik6H4g3Gvsv8RFkXnemNIC62XIsgvEtkO8E0lz8hMDSBg9yk494fot."

// Store is the durable credential store: accounts, roles and the PATCHable
// account-service settings. Every mutation persists synchronously through
// the JSON database before it is reported successful; a failed write rolls
// the in-memory copy back so memory and disk never diverge.
type Store struct {
	mu sync.RWMutex

	db       *store.DB
	accounts map[string]*Account
	roles    map[string]*Role
	settings ServiceSettings
}

// NewStore loads the databases from the data directory, seeding factory
// defaults for any database file that does not exist yet.
func NewStore(db *store.DB) (*Store, error) {
	s := &Store{
		db:       db,
		accounts: make(map[string]*Account),
		roles:    make(map[string]*Role),
	}

	if err := s.loadOrSeed(); err != nil {
		return nil, err
	}

	return s, nil
}

func defaultRoles() map[string]*Role {
	return map[string]*Role{
		definitions.RoleAdministrator: {
			ID:           definitions.RoleAdministrator,
			Name:         "User Role",
			Description:  "Admin User Role",
			IsPredefined: true,
			AssignedPrivileges: definitions.Privileges{
				definitions.PrivilegeLogin,
				definitions.PrivilegeConfigureManager,
				definitions.PrivilegeConfigureUsers,
				definitions.PrivilegeConfigureSelf,
				definitions.PrivilegeConfigureComponents,
			},
		},
		definitions.RoleOperator: {
			ID:           definitions.RoleOperator,
			Name:         "User Role",
			Description:  "Operator User Role",
			IsPredefined: true,
			AssignedPrivileges: definitions.Privileges{
				definitions.PrivilegeLogin,
				definitions.PrivilegeConfigureSelf,
				definitions.PrivilegeConfigureComponents,
			},
		},
		definitions.RoleReadOnly: {
			ID:           definitions.RoleReadOnly,
			Name:         "User Role",
			Description:  "ReadOnly User Role",
			IsPredefined: true,
			AssignedPrivileges: definitions.Privileges{
				definitions.PrivilegeLogin,
				definitions.PrivilegeConfigureSelf,
			},
		},
	}
}

func defaultAccounts() map[string]*Account {
	return map[string]*Account{
		definitions.RootAccountID: {
			ID:        definitions.RootAccountID,
			UserName:  "root",
			Password:  defaultRootPasswordHash,
			RoleID:    definitions.RoleAdministrator,
			Enabled:   true,
			Deletable: false,
		},
	}
}

func defaultSettings() ServiceSettings {
	return ServiceSettings{
		AuthFailureLoggingThreshold:     definitions.DefaultAuthFailureLoggingThreshold,
		MinPasswordLength:               definitions.DefaultMinPasswordLength,
		MaxPasswordLength:               definitions.DefaultMaxPasswordLength,
		AccountLockoutThreshold:         definitions.DefaultLockoutThreshold,
		AccountLockoutDuration:          definitions.DefaultLockoutDuration,
		AccountLockoutCounterResetAfter: definitions.DefaultLockoutCounterReset,
	}
}

func (s *Store) loadOrSeed() error {
	found, err := s.db.Load(accountsDbName, &s.accounts)
	if err != nil {
		return err
	}

	if !found {
		s.accounts = defaultAccounts()
		if err := s.db.Save(accountsDbName, s.accounts); err != nil {
			return err
		}
	}

	found, err = s.db.Load(rolesDbName, &s.roles)
	if err != nil {
		return err
	}

	if !found {
		s.roles = defaultRoles()
		if err := s.db.Save(rolesDbName, s.roles); err != nil {
			return err
		}
	}

	found, err = s.db.Load(accountServiceDbName, &s.settings)
	if err != nil {
		return err
	}

	if !found {
		s.settings = defaultSettings()
		if err := s.db.Save(accountServiceDbName, s.settings); err != nil {
			return err
		}
	}

	return nil
}

// FindAccountByUsername resolves a username to its account identifier.
// Identifiers and usernames are distinct namespaces and need not match.
func (s *Store) FindAccountByUsername(username string) (string, error) {
	s.mu.RLock()

	defer s.mu.RUnlock()

	for id, acct := range s.accounts {
		if acct.UserName == username {
			return id, nil
		}
	}

	return "", errors.ErrUsernameNotFound
}

// GetAccount returns a copy of the account record.
func (s *Store) GetAccount(accountID string) (Account, error) {
	s.mu.RLock()

	defer s.mu.RUnlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return Account{}, errors.ErrAccountNotFound
	}

	return *acct, nil
}

// ListAccountIDs returns all account identifiers in stable order.
func (s *Store) ListAccountIDs() []string {
	s.mu.RLock()

	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// CreateAccount inserts a new account. Username uniqueness is enforced here,
// inside the store lock, so two concurrent creations cannot both pass.
func (s *Store) CreateAccount(acct Account) error {
	s.mu.Lock()

	defer s.mu.Unlock()

	if _, exists := s.accounts[acct.ID]; exists {
		return errors.ErrUsernameExists
	}

	for _, existing := range s.accounts {
		if existing.UserName == acct.UserName {
			return errors.ErrUsernameExists
		}
	}

	if _, ok := s.roles[acct.RoleID]; !ok {
		return errors.ErrRoleNotFound
	}

	s.accounts[acct.ID] = &acct

	if err := s.db.Save(accountsDbName, s.accounts); err != nil {
		delete(s.accounts, acct.ID)

		return fmt.Errorf("%w: %v", errors.ErrPersistFailed, err)
	}

	return nil
}

// UpdateAccount applies mutate to the account under the store lock and
// persists the result. The mutation is rolled back if persisting fails.
func (s *Store) UpdateAccount(accountID string, mutate func(*Account) error) error {
	s.mu.Lock()

	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return errors.ErrAccountNotFound
	}

	previous := *acct
	if err := mutate(acct); err != nil {
		*acct = previous

		return err
	}

	if err := s.db.Save(accountsDbName, s.accounts); err != nil {
		*acct = previous

		return fmt.Errorf("%w: %v", errors.ErrPersistFailed, err)
	}

	return nil
}

// DeleteAccount removes a deletable account.
func (s *Store) DeleteAccount(accountID string) error {
	s.mu.Lock()

	defer s.mu.Unlock()

	acct, ok := s.accounts[accountID]
	if !ok {
		return errors.ErrAccountNotFound
	}

	if !acct.Deletable {
		return errors.ErrAccountNotDeletable
	}

	delete(s.accounts, accountID)

	if err := s.db.Save(accountsDbName, s.accounts); err != nil {
		s.accounts[accountID] = acct

		return fmt.Errorf("%w: %v", errors.ErrPersistFailed, err)
	}

	return nil
}

// GetRole returns a copy of the role record. The privilege slice is cloned
// so callers cannot mutate the stored role through it.
func (s *Store) GetRole(roleID string) (Role, error) {
	s.mu.RLock()

	defer s.mu.RUnlock()

	role, ok := s.roles[roleID]
	if !ok {
		return Role{}, errors.ErrRoleNotFound
	}

	copied := *role
	copied.AssignedPrivileges = role.AssignedPrivileges.Clone()

	return copied, nil
}

// ListRoleIDs returns all role identifiers in stable order.
func (s *Store) ListRoleIDs() []string {
	s.mu.RLock()

	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.roles))
	for id := range s.roles {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// CreateRole inserts a new custom role.
func (s *Store) CreateRole(role Role) error {
	s.mu.Lock()

	defer s.mu.Unlock()

	if _, exists := s.roles[role.ID]; exists {
		return errors.ErrRoleExists
	}

	s.roles[role.ID] = &role

	if err := s.db.Save(rolesDbName, s.roles); err != nil {
		delete(s.roles, role.ID)

		return fmt.Errorf("%w: %v", errors.ErrPersistFailed, err)
	}

	return nil
}

// UpdateRolePrivileges replaces the assigned privilege set of a custom role.
// Predefined roles are immutable.
func (s *Store) UpdateRolePrivileges(roleID string, privileges definitions.Privileges) error {
	s.mu.Lock()

	defer s.mu.Unlock()

	role, ok := s.roles[roleID]
	if !ok {
		return errors.ErrRoleNotFound
	}

	if role.IsPredefined {
		return errors.ErrRolePredefined
	}

	previous := role.AssignedPrivileges
	role.AssignedPrivileges = privileges.Clone()

	if err := s.db.Save(rolesDbName, s.roles); err != nil {
		role.AssignedPrivileges = previous

		return fmt.Errorf("%w: %v", errors.ErrPersistFailed, err)
	}

	return nil
}

// DeleteRole removes a custom role. Deletion is rejected while any account
// still references the role, leaving role and accounts unchanged.
func (s *Store) DeleteRole(roleID string) error {
	s.mu.Lock()

	defer s.mu.Unlock()

	role, ok := s.roles[roleID]
	if !ok {
		return errors.ErrRoleNotFound
	}

	if role.IsPredefined {
		return errors.ErrRolePredefined
	}

	for _, acct := range s.accounts {
		if acct.RoleID == roleID {
			return errors.ErrRoleInUse
		}
	}

	delete(s.roles, roleID)

	if err := s.db.Save(rolesDbName, s.roles); err != nil {
		s.roles[roleID] = role

		return fmt.Errorf("%w: %v", errors.ErrPersistFailed, err)
	}

	return nil
}

// Settings returns the current account-service settings.
func (s *Store) Settings() ServiceSettings {
	s.mu.RLock()

	defer s.mu.RUnlock()

	return s.settings
}

// UpdateSettings applies mutate to the service settings and persists them.
func (s *Store) UpdateSettings(mutate func(*ServiceSettings) error) error {
	s.mu.Lock()

	defer s.mu.Unlock()

	previous := s.settings
	if err := mutate(&s.settings); err != nil {
		s.settings = previous

		return err
	}

	if err := s.db.Save(accountServiceDbName, s.settings); err != nil {
		s.settings = previous

		return fmt.Errorf("%w: %v", errors.ErrPersistFailed, err)
	}

	return nil
}
