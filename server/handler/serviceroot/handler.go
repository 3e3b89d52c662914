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

// Package serviceroot serves the unauthenticated protocol entry points: the
// version object at /redfish and the service root at /redfish/v1.
package serviceroot

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redrock-project/redrock/server/definitions"
)

// Handler serves the service root.
type Handler struct {
	serviceUUID string
}

// New builds the service-root handler. The UUID identifies this service
// instance and stays stable for the process lifetime.
func New(serviceUUID string) *Handler {
	return &Handler{serviceUUID: serviceUUID}
}

// Register attaches the entry-point routes. Both are open by protocol
// definition and take no authentication.
func (h *Handler) Register(engine gin.IRouter) {
	engine.GET("/redfish", h.getVersions)
	engine.GET(definitions.ServiceRootURI, h.getServiceRoot)
	engine.GET(definitions.ServiceRootURI+"/", h.getServiceRoot)
}

func (h *Handler) getVersions(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"v1": definitions.ServiceRootURI + "/"})
}

func (h *Handler) getServiceRoot(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"@odata.id":      definitions.ServiceRootURI,
		"@odata.type":    "#ServiceRoot.v1_5_0.ServiceRoot",
		"Id":             "RootService",
		"Name":           "Root Service",
		"RedfishVersion": "1.6.0",
		"UUID":           h.serviceUUID,
		"AccountService": gin.H{"@odata.id": definitions.ServiceRootURI + "/AccountService"},
		"SessionService": gin.H{"@odata.id": definitions.ServiceRootURI + "/SessionService"},
		"Links": gin.H{
			"Sessions": gin.H{"@odata.id": definitions.SessionsURI},
		},
	})
}
