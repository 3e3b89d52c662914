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

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redrock-project/redrock/server/accounts"
	"github.com/redrock-project/redrock/server/config"
	"github.com/redrock-project/redrock/server/definitions"
	"github.com/redrock-project/redrock/server/errors"
	"github.com/redrock-project/redrock/server/session"
	"github.com/redrock-project/redrock/server/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthSection{
			AllowAuthenticatedAPIsOverHTTP: true,
			AllowBasicAuthOverHTTP:         true,
			AllowSessionLoginOverHTTP:      true,
			AllowCredentialUpdateOverHTTP:  true,
		},
	}
}

type gateFixture struct {
	cfg      *config.Config
	gate     *Gate
	sessions *session.Manager
	store    *accounts.Store
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db, err := store.Open(t.TempDir())
	require.NoError(t, err)

	accountStore, err := accounts.NewStore(db)
	require.NoError(t, err)

	sessions, err := session.NewManager(db)
	require.NoError(t, err)

	cfg := testConfig()
	authenticator := accounts.NewAuthenticator(accountStore, accounts.NewTracker())

	return &gateFixture{
		cfg:      cfg,
		gate:     NewGate(cfg, authenticator, sessions),
		sessions: sessions,
		store:    accountStore,
	}
}

func (f *gateFixture) serve(t *testing.T, req *http.Request, alternatives ...[]definitions.Privilege) *httptest.ResponseRecorder {
	t.Helper()

	engine := gin.New()
	engine.GET("/probe", f.gate.RequirePrivileges(alternatives...), func(ctx *gin.Context) {
		identity, _ := IdentityFromContext(ctx)
		ctx.JSON(http.StatusOK, gin.H{"username": identity.Username})
	})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	return recorder
}

func loginAlt() []definitions.Privilege {
	return []definitions.Privilege{definitions.PrivilegeLogin}
}

func TestGateOpenRouteNeedsNoCredentials(t *testing.T) {
	f := newGateFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)

	recorder := f.serve(t, req)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestGateChallengesWithoutCredentials(t *testing.T) {
	f := newGateFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)

	recorder := f.serve(t, req, loginAlt())
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Contains(t, recorder.Header().Get("WWW-Authenticate"), "Basic")
	assert.Contains(t, recorder.Body.String(), errors.ErrMissingCredentials.Error())
}

func TestGateBasicAuthSuccess(t *testing.T) {
	f := newGateFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.SetBasicAuth("root", "calvin")

	recorder := f.serve(t, req, loginAlt())
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "root")
}

func TestGateBasicAuthUnknownUserIsNotFound(t *testing.T) {
	f := newGateFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.SetBasicAuth("nobody", "whatever")

	recorder := f.serve(t, req, loginAlt())
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestGateBasicAuthWrongPassword(t *testing.T) {
	f := newGateFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.SetBasicAuth("root", "hobbes")

	recorder := f.serve(t, req, loginAlt())
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Empty(t, recorder.Header().Get("WWW-Authenticate"))
}

func TestGateTokenAuth(t *testing.T) {
	f := newGateFixture(t)

	sess, err := f.sessions.Create("root", "root", definitions.Privileges{definitions.PrivilegeLogin})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(definitions.HeaderAuthToken, sess.Token)

	recorder := f.serve(t, req, loginAlt())
	assert.Equal(t, http.StatusOK, recorder.Code)

	// A bogus token is unauthorized, not a challenge.
	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(definitions.HeaderAuthToken, "bogus")

	recorder = f.serve(t, req, loginAlt())
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestGateInsufficientPrivileges(t *testing.T) {
	f := newGateFixture(t)

	sess, err := f.sessions.Create("alice", "alice", definitions.Privileges{definitions.PrivilegeLogin})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(definitions.HeaderAuthToken, sess.Token)

	recorder := f.serve(t, req, []definitions.Privilege{definitions.PrivilegeConfigureUsers})
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Contains(t, recorder.Body.String(), errors.ErrInsufficientPrivileges.Error())
}

func TestGateAlternativesAreDisjunctive(t *testing.T) {
	f := newGateFixture(t)

	sess, err := f.sessions.Create("alice", "alice",
		definitions.Privileges{definitions.PrivilegeLogin, definitions.PrivilegeConfigureSelf})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(definitions.HeaderAuthToken, sess.Token)

	// Fails the first alternative but passes the second.
	recorder := f.serve(t, req,
		[]definitions.Privilege{definitions.PrivilegeConfigureUsers},
		[]definitions.Privilege{definitions.PrivilegeConfigureSelf})
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestGateAuthNoneGrantsAdministrator(t *testing.T) {
	f := newGateFixture(t)
	f.cfg.Auth.AllowAuthNone = true

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)

	recorder := f.serve(t, req, []definitions.Privilege{definitions.PrivilegeConfigureManager})
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestGatePlaintextPolicy(t *testing.T) {
	f := newGateFixture(t)
	f.cfg.Auth.AllowAuthenticatedAPIsOverHTTP = false

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.SetBasicAuth("root", "calvin")

	// Plain HTTP request against a protected route hides the resource.
	recorder := f.serve(t, req, loginAlt())
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// The reverse proxy vouching for HTTPS lifts the restriction.
	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.SetBasicAuth("root", "calvin")
	req.Header.Set(definitions.HeaderFromRproxy, "HTTPS")

	recorder = f.serve(t, req, loginAlt())
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestGateBasicOverHTTPDisabled(t *testing.T) {
	f := newGateFixture(t)
	f.cfg.Auth.AllowBasicAuthOverHTTP = false

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.SetBasicAuth("root", "calvin")

	recorder := f.serve(t, req, loginAlt())
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	// Token authentication is unaffected by the Basic restriction.
	sess, err := f.sessions.Create("root", "root", definitions.Privileges{definitions.PrivilegeLogin})
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(definitions.HeaderAuthToken, sess.Token)

	recorder = f.serve(t, req, loginAlt())
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestCheckPrivileges(t *testing.T) {
	held := definitions.Privileges{definitions.PrivilegeLogin, definitions.PrivilegeConfigureSelf}

	tests := []struct {
		name         string
		alternatives [][]definitions.Privilege
		want         bool
	}{
		{"no requirements", nil, true},
		{"single match", [][]definitions.Privilege{{definitions.PrivilegeLogin}}, true},
		{"conjunction met", [][]definitions.Privilege{{definitions.PrivilegeLogin, definitions.PrivilegeConfigureSelf}}, true},
		{"conjunction partly met", [][]definitions.Privilege{{definitions.PrivilegeLogin, definitions.PrivilegeConfigureUsers}}, false},
		{"second alternative wins", [][]definitions.Privilege{
			{definitions.PrivilegeConfigureManager},
			{definitions.PrivilegeConfigureSelf},
		}, true},
		{"nothing matches", [][]definitions.Privilege{{definitions.PrivilegeConfigureManager}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPrivileges(held, tt.alternatives))
		})
	}
}
