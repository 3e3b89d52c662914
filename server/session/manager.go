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

// Package session implements the token-authenticated session manager. The
// session table is volatile; only the PATCHable session-service settings are
// persisted.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/redrock-project/redrock/server/definitions"
	"github.com/redrock-project/redrock/server/errors"
	"github.com/redrock-project/redrock/server/log"
	"github.com/redrock-project/redrock/server/store"
)

const sessionServiceDbName = "SessionServiceDb"

const tokenBytes = 32

// Session is one live login. Privileges are the snapshot taken at creation;
// role edits after login do not change what the session may do.
type Session struct {
	ID         string
	Token      string
	AccountID  string
	Username   string
	Privileges definitions.Privileges
	Location   string
	CreatedAt  time.Time
	LastAccess time.Time
}

// serviceSettings is the persisted part of the session service.
type serviceSettings struct {
	SessionTimeout int `json:"SessionTimeout"`
}

// Manager owns the session table and the inactivity timeout. Expiry is lazy:
// a session past its idle window is removed when it is next touched, never by
// a background sweeper.
type Manager struct {
	mu sync.Mutex

	db       *store.DB
	sessions map[string]*Session
	byToken  map[string]string
	settings serviceSettings

	// now is replaceable in tests.
	now func() time.Time
}

// NewManager loads the session-service settings, seeding the default timeout
// when no database file exists yet.
func NewManager(db *store.DB) (*Manager, error) {
	m := &Manager{
		db:       db,
		sessions: make(map[string]*Session),
		byToken:  make(map[string]string),
		now:      time.Now,
	}

	found, err := db.Load(sessionServiceDbName, &m.settings)
	if err != nil {
		return nil, err
	}

	if !found {
		m.settings = serviceSettings{SessionTimeout: definitions.DefaultSessionTimeout}
		if err := db.Save(sessionServiceDbName, m.settings); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Timeout returns the current inactivity timeout in seconds.
func (m *Manager) Timeout() int {
	m.mu.Lock()

	defer m.mu.Unlock()

	return m.settings.SessionTimeout
}

// SetTimeout replaces the inactivity timeout and persists it. Sessions
// created earlier are judged against the new value from now on.
func (m *Manager) SetTimeout(seconds int) error {
	m.mu.Lock()

	defer m.mu.Unlock()

	previous := m.settings.SessionTimeout
	m.settings.SessionTimeout = seconds

	if err := m.db.Save(sessionServiceDbName, m.settings); err != nil {
		m.settings.SessionTimeout = previous

		return fmt.Errorf("%w: %v", errors.ErrPersistFailed, err)
	}

	return nil
}

func newToken() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Create opens a session for an already-authenticated identity and returns
// it together with its one-time-visible token.
func (m *Manager) Create(accountID string, username string, privileges definitions.Privileges) (Session, error) {
	token, err := newToken()
	if err != nil {
		return Session{}, err
	}

	id := ksuid.New().String()
	now := m.now()

	sess := &Session{
		ID:         id,
		Token:      token,
		AccountID:  accountID,
		Username:   username,
		Privileges: privileges.Clone(),
		Location:   definitions.SessionsURI + "/" + id,
		CreatedAt:  now,
		LastAccess: now,
	}

	m.mu.Lock()

	defer m.mu.Unlock()

	m.sessions[id] = sess
	m.byToken[token] = id

	log.Logger.Info("session created",
		"session_id", id,
		definitions.LogKeyUsername, username,
		definitions.LogKeyAccountID, accountID,
	)

	return *sess, nil
}

// expired reports whether the session's idle window has passed. Caller holds
// the manager lock.
func (m *Manager) expired(sess *Session, now time.Time) bool {
	timeout := time.Duration(m.settings.SessionTimeout) * time.Second

	return now.Sub(sess.LastAccess) > timeout
}

// drop removes the session from both indexes. Caller holds the manager lock.
func (m *Manager) drop(sess *Session) {
	delete(m.sessions, sess.ID)
	delete(m.byToken, sess.Token)
}

// LookupByToken authenticates a request by its session token. A hit refreshes
// the idle window; a session past the window is removed and reported as not
// found, and no later request can revive it.
func (m *Manager) LookupByToken(token string) (Session, error) {
	if token == "" {
		return Session{}, errors.ErrInvalidSessionLookup
	}

	m.mu.Lock()

	defer m.mu.Unlock()

	id, ok := m.byToken[token]
	if !ok {
		return Session{}, errors.ErrSessionNotFound
	}

	sess := m.sessions[id]
	now := m.now()

	if m.expired(sess, now) {
		m.drop(sess)

		log.Logger.Info("session expired", "session_id", sess.ID)

		return Session{}, errors.ErrSessionNotFound
	}

	sess.LastAccess = now

	return *sess, nil
}

// Lookup addresses a session by identifier, verifying the supplied token
// belongs to it. The token of the addressed session is required; a token from
// a different session is a mismatch, not a miss.
func (m *Manager) Lookup(id string, token string) (Session, error) {
	if id == "" && token == "" {
		return Session{}, errors.ErrInvalidSessionLookup
	}

	if id == "" {
		return m.LookupByToken(token)
	}

	m.mu.Lock()

	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return Session{}, errors.ErrSessionNotFound
	}

	now := m.now()

	if m.expired(sess, now) {
		m.drop(sess)

		log.Logger.Info("session expired", "session_id", sess.ID)

		return Session{}, errors.ErrSessionNotFound
	}

	if token != sess.Token {
		return Session{}, errors.ErrTokenMismatch
	}

	sess.LastAccess = now

	return *sess, nil
}

// Get returns the session by identifier without refreshing its idle window.
// An expired session is removed and reported as not found.
func (m *Manager) Get(id string) (Session, error) {
	m.mu.Lock()

	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return Session{}, errors.ErrSessionNotFound
	}

	if m.expired(sess, m.now()) {
		m.drop(sess)

		return Session{}, errors.ErrSessionNotFound
	}

	return *sess, nil
}

// Delete logs out the session by identifier.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()

	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return errors.ErrSessionNotFound
	}

	m.drop(sess)

	log.Logger.Info("session deleted", "session_id", id)

	return nil
}

// List returns the identifiers of all live sessions in stable order, sweeping
// out any that have expired on the way.
func (m *Manager) List() []string {
	m.mu.Lock()

	defer m.mu.Unlock()

	now := m.now()

	ids := make([]string, 0, len(m.sessions))
	for id, sess := range m.sessions {
		if m.expired(sess, now) {
			m.drop(sess)

			continue
		}

		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
