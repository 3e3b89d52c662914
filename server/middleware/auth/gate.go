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

// Package auth implements the per-route authorization gate. Each protected
// route declares the privilege alternatives that grant access; the gate
// resolves the caller's identity from Basic credentials or a session token
// and checks the alternatives against it.
package auth

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redrock-project/redrock/server/accounts"
	"github.com/redrock-project/redrock/server/config"
	"github.com/redrock-project/redrock/server/definitions"
	"github.com/redrock-project/redrock/server/errors"
	"github.com/redrock-project/redrock/server/log"
	"github.com/redrock-project/redrock/server/session"
)

// Gate is the authorization middleware factory shared by all routes.
type Gate struct {
	cfg           *config.Config
	authenticator *accounts.Authenticator
	sessions      *session.Manager
}

// NewGate wires the gate against its identity sources.
func NewGate(cfg *config.Config, authenticator *accounts.Authenticator, sessions *session.Manager) *Gate {
	return &Gate{
		cfg:           cfg,
		authenticator: authenticator,
		sessions:      sessions,
	}
}

// PlainHTTP reports whether the request reached the service over plaintext.
// A fronting reverse proxy may terminate TLS and declare the client scheme
// through the X-Rm-From-Rproxy header; that declaration wins.
func PlainHTTP(ctx *gin.Context) bool {
	if ctx.Request.TLS != nil {
		return false
	}

	return ctx.GetHeader(definitions.HeaderFromRproxy) != "HTTPS"
}

// CheckPrivileges evaluates the disjunction-of-conjunctions privilege form:
// access is granted when the caller holds every privilege of at least one
// alternative. An empty alternatives list grants access unconditionally.
func CheckPrivileges(held definitions.Privileges, alternatives [][]definitions.Privilege) bool {
	if len(alternatives) == 0 {
		return true
	}

	for _, required := range alternatives {
		if held.HasAll(required) {
			return true
		}
	}

	return false
}

// IdentityFromContext returns the identity the gate stored for this request.
func IdentityFromContext(ctx *gin.Context) (accounts.Identity, bool) {
	value, ok := ctx.Get(definitions.CtxIdentityKey)
	if !ok {
		return accounts.Identity{}, false
	}

	identity, ok := value.(accounts.Identity)

	return identity, ok
}

func noneIdentity() accounts.Identity {
	return accounts.Identity{
		AccountID: definitions.RootAccountID,
		Username:  "root",
		RoleID:    definitions.RoleAdministrator,
		Privileges: definitions.Privileges{
			definitions.PrivilegeLogin,
			definitions.PrivilegeConfigureManager,
			definitions.PrivilegeConfigureUsers,
			definitions.PrivilegeConfigureSelf,
			definitions.PrivilegeConfigureComponents,
		},
	}
}

// RequirePrivileges builds the middleware protecting one route. Alternatives
// follow the disjunction-of-conjunctions form of CheckPrivileges. Routes with
// no alternatives are open and skip authentication entirely.
func (g *Gate) RequirePrivileges(alternatives ...[]definitions.Privilege) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if len(alternatives) == 0 {
			return
		}

		if g.cfg.Auth.AllowAuthNone {
			ctx.Set(definitions.CtxIdentityKey, noneIdentity())

			return
		}

		plain := PlainHTTP(ctx)
		if plain && !g.cfg.Auth.AllowAuthenticatedAPIsOverHTTP {
			ctx.AbortWithStatus(http.StatusNotFound)

			return
		}

		if username, password, hasBasic := ctx.Request.BasicAuth(); hasBasic {
			g.basicAuth(ctx, username, password, plain, alternatives)

			return
		}

		if token := ctx.GetHeader(definitions.HeaderAuthToken); token != "" {
			g.tokenAuth(ctx, token, alternatives)

			return
		}

		ctx.Header("WWW-Authenticate", `Basic realm="redrock"`)
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errors.ErrMissingCredentials.Error()})
	}
}

func (g *Gate) basicAuth(ctx *gin.Context, username string, password string, plain bool, alternatives [][]definitions.Privilege) {
	if plain && !g.cfg.Auth.AllowBasicAuthOverHTTP {
		ctx.AbortWithStatus(http.StatusNotFound)

		return
	}

	identity, err := g.authenticator.Authenticate(username, password)
	if err != nil {
		guid := ctx.GetString(definitions.CtxGUIDKey)

		if stderrors.Is(err, errors.ErrUsernameNotFound) {
			log.Logger.Info("basic auth with unknown username",
				definitions.LogKeyGUID, guid,
				definitions.LogKeyUsername, username,
			)

			ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})

			return
		}

		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

		return
	}

	g.authorize(ctx, identity, alternatives)
}

func (g *Gate) tokenAuth(ctx *gin.Context, token string, alternatives [][]definitions.Privilege) {
	sess, err := g.sessions.LookupByToken(token)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired auth token"})

		return
	}

	identity := accounts.Identity{
		AccountID:  sess.AccountID,
		Username:   sess.Username,
		RoleID:     "",
		Privileges: sess.Privileges,
	}

	g.authorize(ctx, identity, alternatives)
}

func (g *Gate) authorize(ctx *gin.Context, identity accounts.Identity, alternatives [][]definitions.Privilege) {
	if !CheckPrivileges(identity.Privileges, alternatives) {
		log.Logger.Info("request denied",
			definitions.LogKeyGUID, ctx.GetString(definitions.CtxGUIDKey),
			definitions.LogKeyUsername, identity.Username,
			definitions.LogKeyPath, ctx.Request.URL.Path,
		)

		ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": errors.ErrInsufficientPrivileges.Error()})

		return
	}

	ctx.Set(definitions.CtxIdentityKey, identity)
}
