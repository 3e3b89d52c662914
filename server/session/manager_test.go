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

package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redrock-project/redrock/server/definitions"
	"github.com/redrock-project/redrock/server/errors"
	"github.com/redrock-project/redrock/server/store"
)

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()

	db, err := store.Open(t.TempDir())
	require.NoError(t, err)

	m, err := NewManager(db)
	require.NoError(t, err)

	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m.now = clock.now

	return m, clock
}

func loginPrivileges() definitions.Privileges {
	return definitions.Privileges{definitions.PrivilegeLogin, definitions.PrivilegeConfigureSelf}
}

func TestManagerCreateAndLookup(t *testing.T) {
	m, _ := newTestManager(t)

	sess, err := m.Create("alice", "alice", loginPrivileges())
	require.NoError(t, err)

	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.Token)
	assert.True(t, strings.HasPrefix(sess.Location, definitions.SessionsURI+"/"))
	assert.True(t, strings.HasSuffix(sess.Location, sess.ID))

	got, err := m.LookupByToken(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "alice", got.Username)
}

func TestManagerLookupRefreshesIdleWindow(t *testing.T) {
	m, clock := newTestManager(t)

	sess, err := m.Create("alice", "alice", loginPrivileges())
	require.NoError(t, err)

	timeout := time.Duration(m.Timeout()) * time.Second

	// Touch the session just before the window closes, repeatedly. Each
	// touch restarts the window, so the session stays alive far past the
	// timeout measured from creation.
	for i := 0; i < 3; i++ {
		clock.advance(timeout - time.Second)

		_, err = m.LookupByToken(sess.Token)
		require.NoError(t, err)
	}
}

func TestManagerExpiredSessionStaysGone(t *testing.T) {
	m, clock := newTestManager(t)

	sess, err := m.Create("alice", "alice", loginPrivileges())
	require.NoError(t, err)

	clock.advance(time.Duration(m.Timeout())*time.Second + time.Second)

	_, err = m.LookupByToken(sess.Token)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)

	// Rolling the clock back does not resurrect it.
	clock.advance(-time.Hour)

	_, err = m.LookupByToken(sess.Token)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)

	_, err = m.Get(sess.ID)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestManagerLookupByIDTokenMismatch(t *testing.T) {
	m, _ := newTestManager(t)

	first, err := m.Create("alice", "alice", loginPrivileges())
	require.NoError(t, err)

	second, err := m.Create("bob", "bob", loginPrivileges())
	require.NoError(t, err)

	// The token of a different live session is a mismatch, not a miss.
	_, err = m.Lookup(first.ID, second.Token)
	assert.ErrorIs(t, err, errors.ErrTokenMismatch)

	got, err := m.Lookup(first.ID, first.Token)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestManagerLookupWithoutCredentials(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Lookup("", "")
	assert.ErrorIs(t, err, errors.ErrInvalidSessionLookup)

	_, err = m.LookupByToken("")
	assert.ErrorIs(t, err, errors.ErrInvalidSessionLookup)
}

func TestManagerDelete(t *testing.T) {
	m, _ := newTestManager(t)

	sess, err := m.Create("alice", "alice", loginPrivileges())
	require.NoError(t, err)

	require.NoError(t, m.Delete(sess.ID))

	_, err = m.LookupByToken(sess.Token)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)

	assert.ErrorIs(t, m.Delete(sess.ID), errors.ErrSessionNotFound)
}

func TestManagerListSweepsExpired(t *testing.T) {
	m, clock := newTestManager(t)

	stale, err := m.Create("alice", "alice", loginPrivileges())
	require.NoError(t, err)

	clock.advance(time.Duration(m.Timeout())*time.Second + time.Second)

	fresh, err := m.Create("bob", "bob", loginPrivileges())
	require.NoError(t, err)

	ids := m.List()
	assert.Equal(t, []string{fresh.ID}, ids)

	_, err = m.Get(stale.ID)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestManagerTimeoutPersistsAndApplies(t *testing.T) {
	db, err := store.Open(t.TempDir())
	require.NoError(t, err)

	m, err := NewManager(db)
	require.NoError(t, err)

	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m.now = clock.now

	require.NoError(t, m.SetTimeout(60))

	// A new timeout also governs sessions created before the change.
	sess, err := m.Create("alice", "alice", loginPrivileges())
	require.NoError(t, err)

	clock.advance(61 * time.Second)

	_, err = m.LookupByToken(sess.Token)
	assert.ErrorIs(t, err, errors.ErrSessionNotFound)

	// The setting survives a restart over the same data directory.
	again, err := NewManager(db)
	require.NoError(t, err)
	assert.Equal(t, 60, again.Timeout())
}

// Session privileges are snapshots; mutating the caller's slice afterwards
// must not leak into the stored session.
func TestManagerPrivilegeSnapshot(t *testing.T) {
	m, _ := newTestManager(t)

	privileges := loginPrivileges()

	sess, err := m.Create("alice", "alice", privileges)
	require.NoError(t, err)

	privileges[0] = definitions.PrivilegeConfigureManager

	got, err := m.LookupByToken(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, definitions.PrivilegeLogin, got.Privileges[0])
}
