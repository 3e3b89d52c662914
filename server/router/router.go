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

// Package router assembles the gin engine: middleware chain, protocol
// headers and the full route table.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"

	"github.com/redrock-project/redrock/server/accounts"
	"github.com/redrock-project/redrock/server/config"
	"github.com/redrock-project/redrock/server/definitions"
	"github.com/redrock-project/redrock/server/handler/accountsvc"
	"github.com/redrock-project/redrock/server/handler/serviceroot"
	"github.com/redrock-project/redrock/server/handler/sessionsvc"
	authmw "github.com/redrock-project/redrock/server/middleware/auth"
	"github.com/redrock-project/redrock/server/middleware/logging"
	"github.com/redrock-project/redrock/server/session"
)

// protocolHeaders stamps the headers every response carries.
func protocolHeaders(cfg *config.Config) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header(definitions.HeaderODataVersion, definitions.ODataVersion)

		if cfg.Server.HeaderServer != "" {
			ctx.Header("Server", cfg.Server.HeaderServer)
		}

		if cfg.Server.HeaderCacheControl != "" {
			ctx.Header("Cache-Control", cfg.Server.HeaderCacheControl)
		}
	}
}

// New assembles the engine with all routes registered.
func New(cfg *config.Config, store *accounts.Store, authenticator *accounts.Authenticator, sessions *session.Manager) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logging.Middleware())
	engine.Use(protocolHeaders(cfg))

	gate := authmw.NewGate(cfg, authenticator, sessions)

	serviceroot.New(ksuid.New().String()).Register(engine)

	v1 := engine.Group(definitions.ServiceRootURI)

	accountsvc.New(cfg, store, authenticator.Tracker()).Register(v1, gate)
	sessionsvc.New(cfg, authenticator, sessions).Register(v1, gate)

	return engine
}
