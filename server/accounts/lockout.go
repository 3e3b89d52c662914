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
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/redrock-project/redrock/server/errors"
	"github.com/redrock-project/redrock/server/log"
)

// lockoutState is the volatile per-account failure record. It is never
// persisted; a restart clears all counters and locks.
type lockoutState struct {
	mu sync.Mutex

	locked      bool
	failedCount int
	lockedAt    time.Time
	lastFailAt  time.Time
}

// Tracker maintains the lockout state machine for every account. States live
// in an in-memory cache keyed by account identifier and expire only when an
// account is removed.
type Tracker struct {
	states *cache.Cache

	// now is replaceable in tests.
	now func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		states: cache.New(cache.NoExpiration, cache.NoExpiration),
		now:    time.Now,
	}
}

func (t *Tracker) state(accountID string) *lockoutState {
	if value, found := t.states.Get(accountID); found {
		return value.(*lockoutState)
	}

	state := &lockoutState{}
	if err := t.states.Add(accountID, state, cache.NoExpiration); err != nil {
		// Lost the race; another goroutine inserted first.
		value, _ := t.states.Get(accountID)

		return value.(*lockoutState)
	}

	return state
}

// Attempt runs one credential verification under the lockout state machine.
// The per-account lock is held across the verify callback, so concurrent
// attempts against the same account serialize and observe each other's
// counter updates.
//
// A locked account whose lockout duration has elapsed is unlocked first and
// the attempt proceeds. Counting is only active while both the threshold and
// the duration settings are positive; a failed count older than the counter
// reset window is forgiven before the new failure is recorded.
func (t *Tracker) Attempt(accountID string, settings ServiceSettings, verify func() (bool, error)) error {
	state := t.state(accountID)

	state.mu.Lock()

	defer state.mu.Unlock()

	now := t.now()

	if state.locked {
		if !t.lockExpired(state, settings.AccountLockoutDuration, now) {
			return errors.ErrAccountLocked
		}

		t.clearLocked(state)

		log.Logger.Info("account lockout expired",
			"account_id", accountID,
			"lockout_duration", settings.AccountLockoutDuration,
		)
	}

	ok, err := verify()
	if err != nil {
		return err
	}

	if ok {
		state.failedCount = 0
		state.lastFailAt = time.Time{}

		return nil
	}

	if settings.AccountLockoutThreshold > 0 && settings.AccountLockoutDuration > 0 {
		if state.failedCount > 0 && settings.AccountLockoutCounterResetAfter > 0 {
			window := time.Duration(settings.AccountLockoutCounterResetAfter) * time.Second
			if now.Sub(state.lastFailAt) > window {
				state.failedCount = 0
			}
		}

		if state.failedCount+1 >= settings.AccountLockoutThreshold {
			state.locked = true
			state.lockedAt = now
			state.failedCount = 0
			state.lastFailAt = time.Time{}

			log.Logger.Warn("account locked out",
				"account_id", accountID,
				"lockout_threshold", settings.AccountLockoutThreshold,
				"lockout_duration", settings.AccountLockoutDuration,
			)

			return errors.ErrPasswordIncorrectNowLocked
		}

		state.failedCount++
		state.lastFailAt = now
	}

	return errors.ErrPasswordIncorrect
}

// Locked reports whether the account is currently locked, unlocking it first
// when the lockout duration has already elapsed.
func (t *Tracker) Locked(accountID string, lockoutDuration int) bool {
	state := t.state(accountID)

	state.mu.Lock()

	defer state.mu.Unlock()

	if !state.locked {
		return false
	}

	if t.lockExpired(state, lockoutDuration, t.now()) {
		t.clearLocked(state)

		return false
	}

	return true
}

// Unlock clears the lock and all failure counters for the account. Used by
// the administrative Locked=false PATCH.
func (t *Tracker) Unlock(accountID string) {
	state := t.state(accountID)

	state.mu.Lock()

	defer state.mu.Unlock()

	t.clearLocked(state)
	state.failedCount = 0
	state.lastFailAt = time.Time{}
}

// Remove drops all volatile state for a deleted account.
func (t *Tracker) Remove(accountID string) {
	t.states.Delete(accountID)
}

func (t *Tracker) lockExpired(state *lockoutState, lockoutDuration int, now time.Time) bool {
	if lockoutDuration <= 0 {
		return true
	}

	return now.Sub(state.lockedAt) > time.Duration(lockoutDuration)*time.Second
}

func (t *Tracker) clearLocked(state *lockoutState) {
	state.locked = false
	state.lockedAt = time.Time{}
}
