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

// Package logging provides the request-logging middleware. Every request is
// tagged with a fresh GUID that later log lines of the same request reuse.
package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"

	"github.com/redrock-project/redrock/server/definitions"
	"github.com/redrock-project/redrock/server/log"
)

// Middleware assigns the request GUID and logs one summary line per request.
func Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		guid := ksuid.New().String()
		ctx.Set(definitions.CtxGUIDKey, guid)

		start := time.Now()

		ctx.Next()

		log.Logger.Info("http request",
			definitions.LogKeyGUID, guid,
			definitions.LogKeyClientIP, ctx.ClientIP(),
			definitions.LogKeyMethod, ctx.Request.Method,
			definitions.LogKeyPath, ctx.Request.URL.Path,
			definitions.LogKeyStatus, ctx.Writer.Status(),
			definitions.LogKeyLatency, time.Since(start),
		)
	}
}
