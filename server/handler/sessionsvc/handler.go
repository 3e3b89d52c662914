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

// Package sessionsvc serves the SessionService resource tree: the service
// resource itself, the session collection with its login POST, and the
// individual session members.
package sessionsvc

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redrock-project/redrock/server/accounts"
	"github.com/redrock-project/redrock/server/config"
	"github.com/redrock-project/redrock/server/definitions"
	"github.com/redrock-project/redrock/server/errors"
	"github.com/redrock-project/redrock/server/log"
	authmw "github.com/redrock-project/redrock/server/middleware/auth"
	"github.com/redrock-project/redrock/server/session"
)

// Handler serves the SessionService routes.
type Handler struct {
	cfg           *config.Config
	authenticator *accounts.Authenticator
	sessions      *session.Manager
}

// New builds the SessionService handler.
func New(cfg *config.Config, authenticator *accounts.Authenticator, sessions *session.Manager) *Handler {
	return &Handler{
		cfg:           cfg,
		authenticator: authenticator,
		sessions:      sessions,
	}
}

// Register attaches the SessionService routes to the router. Privilege
// requirements are enforced by the gate middlewares installed per route.
func (h *Handler) Register(group gin.IRouter, gate *authmw.Gate) {
	login := []definitions.Privilege{definitions.PrivilegeLogin}
	manager := []definitions.Privilege{definitions.PrivilegeConfigureManager}

	group.GET("/SessionService", gate.RequirePrivileges(login), h.getService)
	group.PATCH("/SessionService", gate.RequirePrivileges(manager), h.patchService)

	group.GET("/SessionService/Sessions", gate.RequirePrivileges(login), h.getCollection)
	group.POST("/SessionService/Sessions", h.postSessions)

	group.GET("/SessionService/Sessions/:sessionid", gate.RequirePrivileges(login), h.getSession)
	group.DELETE("/SessionService/Sessions/:sessionid",
		gate.RequirePrivileges(manager, login),
		h.deleteSession)
}

func (h *Handler) getService(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"@odata.id":      definitions.ServiceRootURI + "/SessionService",
		"@odata.type":    "#SessionService.v1_1_5.SessionService",
		"Id":             "SessionService",
		"Name":           "Session Service",
		"ServiceEnabled": true,
		"SessionTimeout": h.sessions.Timeout(),
		"Sessions":       gin.H{"@odata.id": definitions.SessionsURI},
	})
}

type servicePatch struct {
	SessionTimeout *int `json:"SessionTimeout"`
}

func (h *Handler) patchService(ctx *gin.Context) {
	var patch servicePatch

	raw := map[string]json.RawMessage{}
	if err := ctx.ShouldBindJSON(&raw); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	for key, value := range raw {
		if key != "SessionTimeout" {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "property is not patchable: " + key})

			return
		}

		if err := json.Unmarshal(value, &patch.SessionTimeout); err != nil || patch.SessionTimeout == nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "SessionTimeout must be an integer"})

			return
		}
	}

	if patch.SessionTimeout == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "no patchable property supplied"})

		return
	}

	timeout := *patch.SessionTimeout
	if timeout < definitions.SessionTimeoutMin || timeout > definitions.SessionTimeoutMax {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "SessionTimeout out of range"})

		return
	}

	if err := h.sessions.SetTimeout(timeout); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *Handler) getCollection(ctx *gin.Context) {
	ids := h.sessions.List()

	members := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		members = append(members, gin.H{"@odata.id": definitions.SessionsURI + "/" + id})
	}

	ctx.JSON(http.StatusOK, gin.H{
		"@odata.id":           definitions.SessionsURI,
		"@odata.type":         "#SessionCollection.SessionCollection",
		"Name":                "Session Collection",
		"Members@odata.count": len(members),
		"Members":             members,
	})
}

type loginRequest struct {
	UserName string `json:"UserName"`
	Password string `json:"Password"`
}

// postSessions is the login operation. It is deliberately outside the gate:
// the credentials arrive in the body, not in authentication headers.
func (h *Handler) postSessions(ctx *gin.Context) {
	if authmw.PlainHTTP(ctx) && !h.cfg.Auth.AllowSessionLoginOverHTTP {
		ctx.Status(http.StatusNotFound)

		return
	}

	raw := map[string]json.RawMessage{}
	if err := ctx.ShouldBindJSON(&raw); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	var req loginRequest

	for key, value := range raw {
		switch key {
		case "UserName":
			if err := json.Unmarshal(value, &req.UserName); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "UserName must be a string"})

				return
			}
		case "Password":
			if err := json.Unmarshal(value, &req.Password); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Password must be a string"})

				return
			}
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "unexpected property: " + key})

			return
		}
	}

	if req.UserName == "" || req.Password == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "UserName and Password are required"})

		return
	}

	identity, err := h.authenticator.Authenticate(req.UserName, req.Password)
	if err != nil {
		if err == errors.ErrUsernameNotFound {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "user not found"})

			return
		}

		ctx.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

		return
	}

	if !identity.HasPrivilege(definitions.PrivilegeLogin) {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrNoLoginPrivilege.Error()})

		return
	}

	sess, err := h.sessions.Create(identity.AccountID, identity.Username, identity.Privileges)
	if err != nil {
		log.Logger.Error("session creation failed", definitions.LogKeyError, err)

		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})

		return
	}

	ctx.Header("Location", sess.Location)
	ctx.Header(definitions.HeaderAuthToken, sess.Token)

	ctx.JSON(http.StatusCreated, sessionResource(sess))
}

// sessionResource builds the member payload. The token is never part of it,
// only the login response header carries it.
func sessionResource(sess session.Session) gin.H {
	return gin.H{
		"@odata.id":   sess.Location,
		"@odata.type": "#Session.v1_3_0.Session",
		"Id":          sess.ID,
		"Name":        "Session for " + sess.Username,
		"UserName":    sess.Username,
	}
}

func (h *Handler) getSession(ctx *gin.Context) {
	sess, err := h.sessions.Get(ctx.Param("sessionid"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "session not found"})

		return
	}

	ctx.JSON(http.StatusOK, sessionResource(sess))
}

// deleteSession is logout. An administrator may delete any session; everyone
// else may only delete their own.
func (h *Handler) deleteSession(ctx *gin.Context) {
	id := ctx.Param("sessionid")

	sess, err := h.sessions.Get(id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "session not found"})

		return
	}

	identity, ok := authmw.IdentityFromContext(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrMissingCredentials.Error()})

		return
	}

	isManager := identity.HasPrivilege(definitions.PrivilegeConfigureManager)
	if !isManager && sess.AccountID != identity.AccountID {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "session belongs to a different account"})

		return
	}

	if err := h.sessions.Delete(id); err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "session not found"})

		return
	}

	ctx.Status(http.StatusNoContent)
}
