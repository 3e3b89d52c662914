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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redrock-project/redrock/server/errors"
)

func testSettings() ServiceSettings {
	return ServiceSettings{
		AccountLockoutThreshold:         3,
		AccountLockoutDuration:          600,
		AccountLockoutCounterResetAfter: 300,
	}
}

// fakeClock drives the tracker's notion of time in tests.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestTracker() (*Tracker, *fakeClock) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	tracker := NewTracker()
	tracker.now = clock.now

	return tracker, clock
}

func failOnce(t *testing.T, tracker *Tracker, settings ServiceSettings) error {
	t.Helper()

	return tracker.Attempt("alice", settings, func() (bool, error) {
		return false, nil
	})
}

func succeedOnce(t *testing.T, tracker *Tracker, settings ServiceSettings) error {
	t.Helper()

	return tracker.Attempt("alice", settings, func() (bool, error) {
		return true, nil
	})
}

func TestTrackerLocksAtThreshold(t *testing.T) {
	tracker, _ := newTestTracker()
	settings := testSettings()

	assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrect)
	assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrect)

	// Third failure crosses the threshold.
	assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrectNowLocked)

	assert.True(t, tracker.Locked("alice", settings.AccountLockoutDuration))

	// While locked, even correct credentials are rejected without being
	// evaluated.
	err := tracker.Attempt("alice", settings, func() (bool, error) {
		t.Fatal("verify must not run while locked")

		return true, nil
	})
	assert.ErrorIs(t, err, errors.ErrAccountLocked)
}

func TestTrackerUnlocksAfterDuration(t *testing.T) {
	tracker, clock := newTestTracker()
	settings := testSettings()

	for i := 0; i < 3; i++ {
		_ = failOnce(t, tracker, settings)
	}

	require.True(t, tracker.Locked("alice", settings.AccountLockoutDuration))

	clock.advance(time.Duration(settings.AccountLockoutDuration)*time.Second + time.Second)

	// The expired lock is cleared lazily and the correct password works
	// immediately.
	assert.NoError(t, succeedOnce(t, tracker, settings))
	assert.False(t, tracker.Locked("alice", settings.AccountLockoutDuration))
}

func TestTrackerStaysLockedAtExactDuration(t *testing.T) {
	tracker, clock := newTestTracker()
	settings := testSettings()

	for i := 0; i < 3; i++ {
		_ = failOnce(t, tracker, settings)
	}

	// At exactly the lockout duration the lock still holds; it clears one
	// tick later.
	clock.advance(time.Duration(settings.AccountLockoutDuration) * time.Second)

	assert.True(t, tracker.Locked("alice", settings.AccountLockoutDuration))
	assert.ErrorIs(t, succeedOnce(t, tracker, settings), errors.ErrAccountLocked)

	clock.advance(time.Second)

	assert.False(t, tracker.Locked("alice", settings.AccountLockoutDuration))
	assert.NoError(t, succeedOnce(t, tracker, settings))
}

func TestTrackerCounterForgivenessWindow(t *testing.T) {
	tracker, clock := newTestTracker()
	settings := testSettings()

	assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrect)
	assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrect)

	// Outside the counter reset window the stale failures are forgiven, so
	// this third failure counts as the first of a new streak.
	clock.advance(time.Duration(settings.AccountLockoutCounterResetAfter)*time.Second + time.Second)

	assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrect)
	assert.False(t, tracker.Locked("alice", settings.AccountLockoutDuration))

	// Two more inside the window now lock.
	clock.advance(time.Second)
	assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrect)

	clock.advance(time.Second)
	assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrectNowLocked)
}

func TestTrackerSuccessResetsCounter(t *testing.T) {
	tracker, _ := newTestTracker()
	settings := testSettings()

	assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrect)
	assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrect)

	require.NoError(t, succeedOnce(t, tracker, settings))

	// The streak starts over, two failures do not lock.
	assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrect)
	assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrect)
	assert.False(t, tracker.Locked("alice", settings.AccountLockoutDuration))
}

func TestTrackerDisabledWhenThresholdZero(t *testing.T) {
	tracker, _ := newTestTracker()

	settings := testSettings()
	settings.AccountLockoutThreshold = 0

	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, failOnce(t, tracker, settings), errors.ErrPasswordIncorrect)
	}

	assert.False(t, tracker.Locked("alice", settings.AccountLockoutDuration))
}

func TestTrackerAdministrativeUnlock(t *testing.T) {
	tracker, _ := newTestTracker()
	settings := testSettings()

	for i := 0; i < 3; i++ {
		_ = failOnce(t, tracker, settings)
	}

	require.True(t, tracker.Locked("alice", settings.AccountLockoutDuration))

	tracker.Unlock("alice")

	assert.False(t, tracker.Locked("alice", settings.AccountLockoutDuration))
	assert.NoError(t, succeedOnce(t, tracker, settings))
}

func TestTrackerVerifyErrorDoesNotCount(t *testing.T) {
	tracker, _ := newTestTracker()
	settings := testSettings()

	wantErr := assert.AnError

	for i := 0; i < 5; i++ {
		err := tracker.Attempt("alice", settings, func() (bool, error) {
			return false, wantErr
		})
		assert.ErrorIs(t, err, wantErr)
	}

	assert.False(t, tracker.Locked("alice", settings.AccountLockoutDuration))
	assert.NoError(t, succeedOnce(t, tracker, settings))
}
