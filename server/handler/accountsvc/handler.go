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

// Package accountsvc serves the AccountService resource tree: the service
// resource with its lockout settings, the account collection and members,
// and the role collection and members.
package accountsvc

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/redrock-project/redrock/server/accounts"
	"github.com/redrock-project/redrock/server/config"
	"github.com/redrock-project/redrock/server/definitions"
	"github.com/redrock-project/redrock/server/errors"
	authmw "github.com/redrock-project/redrock/server/middleware/auth"
	"github.com/redrock-project/redrock/server/util"
)

// Handler serves the AccountService routes.
type Handler struct {
	cfg     *config.Config
	store   *accounts.Store
	tracker *accounts.Tracker
}

// New builds the AccountService handler.
func New(cfg *config.Config, store *accounts.Store, tracker *accounts.Tracker) *Handler {
	return &Handler{
		cfg:     cfg,
		store:   store,
		tracker: tracker,
	}
}

// Register attaches the AccountService routes to the router.
func (h *Handler) Register(group gin.IRouter, gate *authmw.Gate) {
	login := []definitions.Privilege{definitions.PrivilegeLogin}
	users := []definitions.Privilege{definitions.PrivilegeConfigureUsers}
	manager := []definitions.Privilege{definitions.PrivilegeConfigureManager}
	self := []definitions.Privilege{definitions.PrivilegeConfigureSelf}

	group.GET("/AccountService", gate.RequirePrivileges(login), h.getService)
	group.PATCH("/AccountService", gate.RequirePrivileges(users), h.patchService)

	group.GET("/AccountService/Accounts", gate.RequirePrivileges(login), h.getAccounts)
	group.POST("/AccountService/Accounts", gate.RequirePrivileges(users), h.postAccounts)

	group.GET("/AccountService/Accounts/:accountid", gate.RequirePrivileges(login), h.getAccount)
	group.PATCH("/AccountService/Accounts/:accountid", gate.RequirePrivileges(users, self), h.patchAccount)
	group.DELETE("/AccountService/Accounts/:accountid", gate.RequirePrivileges(users), h.deleteAccount)
	group.POST("/AccountService/Accounts/:accountid", h.methodNotAllowedMember)
	group.PUT("/AccountService/Accounts/:accountid", h.methodNotAllowedMember)

	group.GET("/AccountService/Roles", gate.RequirePrivileges(login), h.getRoles)
	group.POST("/AccountService/Roles", gate.RequirePrivileges(manager), h.postRoles)

	group.GET("/AccountService/Roles/:roleid", gate.RequirePrivileges(login), h.getRole)
	group.PATCH("/AccountService/Roles/:roleid", gate.RequirePrivileges(manager), h.patchRole)
	group.DELETE("/AccountService/Roles/:roleid", gate.RequirePrivileges(manager), h.deleteRole)
	group.POST("/AccountService/Roles/:roleid", h.methodNotAllowedMember)
	group.PUT("/AccountService/Roles/:roleid", h.methodNotAllowedMember)
}

func (h *Handler) methodNotAllowedMember(ctx *gin.Context) {
	ctx.Header("Allow", "GET, PATCH, DELETE")
	ctx.Status(http.StatusMethodNotAllowed)
}

// accountETag derives the strong entity tag of an account resource from the
// fields a PATCH can change.
func accountETag(acct accounts.Account) string {
	sum := sha256.Sum256([]byte(acct.UserName + "\x00" + acct.Password + "\x00" + acct.RoleID + "\x00" + boolString(acct.Enabled)))

	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

func boolString(b bool) string {
	if b {
		return "true"
	}

	return "false"
}

func (h *Handler) getService(ctx *gin.Context) {
	settings := h.store.Settings()

	ctx.JSON(http.StatusOK, gin.H{
		"@odata.id":                       definitions.ServiceRootURI + "/AccountService",
		"@odata.type":                     "#AccountService.v1_5_0.AccountService",
		"Id":                              "AccountService",
		"Name":                            "Account Service",
		"ServiceEnabled":                  true,
		"AuthFailureLoggingThreshold":     settings.AuthFailureLoggingThreshold,
		"MinPasswordLength":               settings.MinPasswordLength,
		"MaxPasswordLength":               settings.MaxPasswordLength,
		"AccountLockoutThreshold":         settings.AccountLockoutThreshold,
		"AccountLockoutDuration":          settings.AccountLockoutDuration,
		"AccountLockoutCounterResetAfter": settings.AccountLockoutCounterResetAfter,
		"Accounts":                        gin.H{"@odata.id": definitions.AccountsURI},
		"Roles":                           gin.H{"@odata.id": definitions.RolesURI},
	})
}

// patchService updates the lockout and password-policy settings. Values must
// be non-negative integers and the counter reset window may not exceed the
// lockout duration when both are active.
func (h *Handler) patchService(ctx *gin.Context) {
	raw := map[string]json.RawMessage{}
	if err := ctx.ShouldBindJSON(&raw); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	patchable := map[string]bool{
		"AuthFailureLoggingThreshold":     true,
		"MinPasswordLength":               true,
		"MaxPasswordLength":               true,
		"AccountLockoutThreshold":         true,
		"AccountLockoutDuration":          true,
		"AccountLockoutCounterResetAfter": true,
	}

	values := map[string]int{}

	for key, value := range raw {
		if !patchable[key] {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "property is not patchable: " + key})

			return
		}

		var parsed int
		if err := json.Unmarshal(value, &parsed); err != nil || parsed < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a non-negative integer"})

			return
		}

		values[key] = parsed
	}

	if len(values) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "no patchable property supplied"})

		return
	}

	err := h.store.UpdateSettings(func(settings *accounts.ServiceSettings) error {
		next := *settings

		for key, value := range values {
			switch key {
			case "AuthFailureLoggingThreshold":
				next.AuthFailureLoggingThreshold = value
			case "MinPasswordLength":
				next.MinPasswordLength = value
			case "MaxPasswordLength":
				next.MaxPasswordLength = value
			case "AccountLockoutThreshold":
				next.AccountLockoutThreshold = value
			case "AccountLockoutDuration":
				next.AccountLockoutDuration = value
			case "AccountLockoutCounterResetAfter":
				next.AccountLockoutCounterResetAfter = value
			}
		}

		if next.MinPasswordLength > next.MaxPasswordLength {
			return errors.ErrPasswordPolicy
		}

		if next.AccountLockoutDuration > 0 && next.AccountLockoutCounterResetAfter > next.AccountLockoutDuration {
			return errors.ErrPasswordPolicy
		}

		*settings = next

		return nil
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrPersistFailed) {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

			return
		}

		ctx.JSON(http.StatusBadRequest, gin.H{"error": "settings violate internal consistency"})

		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *Handler) getAccounts(ctx *gin.Context) {
	ids := h.store.ListAccountIDs()

	members := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		members = append(members, gin.H{"@odata.id": definitions.AccountsURI + "/" + id})
	}

	ctx.JSON(http.StatusOK, gin.H{
		"@odata.id":           definitions.AccountsURI,
		"@odata.type":         "#ManagerAccountCollection.ManagerAccountCollection",
		"Name":                "Accounts Collection",
		"Members@odata.count": len(members),
		"Members":             members,
	})
}

type accountPost struct {
	UserName *string
	Password *string
	RoleID   *string
	Enabled  *bool
}

func (h *Handler) decodeAccountBody(ctx *gin.Context) (accountPost, bool) {
	var body accountPost

	raw := map[string]json.RawMessage{}
	if err := ctx.ShouldBindJSON(&raw); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return body, false
	}

	for key, value := range raw {
		var bad bool

		switch key {
		case "UserName":
			bad = json.Unmarshal(value, &body.UserName) != nil
		case "Password":
			bad = json.Unmarshal(value, &body.Password) != nil
		case "RoleId":
			bad = json.Unmarshal(value, &body.RoleID) != nil
		case "Enabled":
			bad = json.Unmarshal(value, &body.Enabled) != nil
		case "Locked":
			// Only the explicit unlock is writable and only via PATCH.
			var locked bool
			if json.Unmarshal(value, &locked) != nil || locked {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Locked may only be set to false"})

				return body, false
			}
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "property is not writable: " + key})

			return body, false
		}

		if bad {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid value for property " + key})

			return body, false
		}
	}

	return body, true
}

func (h *Handler) checkPassword(ctx *gin.Context, password string) bool {
	settings := h.store.Settings()

	if len(password) < settings.MinPasswordLength || len(password) > settings.MaxPasswordLength {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "password length violates the password policy"})

		return false
	}

	if !util.ValidPasswordChars(password) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "password must not contain whitespace or colon characters"})

		return false
	}

	return true
}

// postAccounts creates an account. The account identifier is the username.
func (h *Handler) postAccounts(ctx *gin.Context) {
	body, ok := h.decodeAccountBody(ctx)
	if !ok {
		return
	}

	if body.UserName == nil || body.Password == nil || body.RoleID == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "UserName, Password and RoleId are required"})

		return
	}

	if !util.ValidUserName(*body.UserName) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrUsernamePolicy.Error()})

		return
	}

	if !h.checkPassword(ctx, *body.Password) {
		return
	}

	if _, err := h.store.GetRole(*body.RoleID); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "role does not exist: " + *body.RoleID})

		return
	}

	hash, err := util.HashPassword(*body.Password)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "hashing password failed"})

		return
	}

	enabled := true
	if body.Enabled != nil {
		enabled = *body.Enabled
	}

	acct := accounts.Account{
		ID:        *body.UserName,
		UserName:  *body.UserName,
		Password:  hash,
		RoleID:    *body.RoleID,
		Enabled:   enabled,
		Deletable: true,
	}

	if err := h.store.CreateAccount(acct); err != nil {
		switch {
		case stderrors.Is(err, errors.ErrUsernameExists):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "username already exists"})
		case stderrors.Is(err, errors.ErrRoleNotFound):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "role does not exist: " + *body.RoleID})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}

		return
	}

	location := definitions.AccountsURI + "/" + acct.ID

	ctx.Header("Location", location)
	ctx.Header("ETag", accountETag(acct))

	ctx.JSON(http.StatusCreated, h.accountResource(acct))
}

// accountResource builds the member payload. The stored password hash is
// never exposed; the Password property is always JSON null.
func (h *Handler) accountResource(acct accounts.Account) gin.H {
	settings := h.store.Settings()

	return gin.H{
		"@odata.id":   definitions.AccountsURI + "/" + acct.ID,
		"@odata.type": "#ManagerAccount.v1_2_0.ManagerAccount",
		"Id":          acct.ID,
		"Name":        "User Account",
		"UserName":    acct.UserName,
		"Password":    nil,
		"RoleId":      acct.RoleID,
		"Enabled":     acct.Enabled,
		"Locked":      h.tracker.Locked(acct.ID, settings.AccountLockoutDuration),
		"Links": gin.H{
			"Role": gin.H{"@odata.id": definitions.RolesURI + "/" + acct.RoleID},
		},
	}
}

func (h *Handler) getAccount(ctx *gin.Context) {
	acct, err := h.store.GetAccount(ctx.Param("accountid"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "account not found"})

		return
	}

	ctx.Header("ETag", accountETag(acct))

	ctx.JSON(http.StatusOK, h.accountResource(acct))
}

// patchAccount updates account properties. Callers with ConfigureUsers may
// change anything on any account; callers with only ConfigureSelf may change
// nothing but their own password.
func (h *Handler) patchAccount(ctx *gin.Context) {
	accountID := ctx.Param("accountid")

	acct, err := h.store.GetAccount(accountID)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "account not found"})

		return
	}

	identity, ok := authmw.IdentityFromContext(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrMissingCredentials.Error()})

		return
	}

	raw := map[string]json.RawMessage{}
	if err := ctx.ShouldBindJSON(&raw); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	if len(raw) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "no patchable property supplied"})

		return
	}

	isUserAdmin := identity.HasPrivilege(definitions.PrivilegeConfigureUsers)
	if !isUserAdmin {
		if identity.AccountID != accountID {
			ctx.JSON(http.StatusForbidden, gin.H{"error": errors.ErrNotSelf.Error()})

			return
		}

		for key := range raw {
			if key != "Password" {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "self-service may only change Password"})

				return
			}
		}
	}

	if _, hasPassword := raw["Password"]; hasPassword {
		if authmw.PlainHTTP(ctx) && !h.cfg.Auth.AllowCredentialUpdateOverHTTP {
			ctx.Status(http.StatusNotFound)

			return
		}
	}

	if match := ctx.GetHeader("If-Match"); match != "" && match != accountETag(acct) {
		ctx.JSON(http.StatusPreconditionFailed, gin.H{"error": "ETag mismatch"})

		return
	}

	var (
		newUserName *string
		newPassword *string
		newRoleID   *string
		newEnabled  *bool
		unlock      bool
	)

	for key, value := range raw {
		var bad bool

		switch key {
		case "UserName":
			bad = json.Unmarshal(value, &newUserName) != nil || newUserName == nil
		case "Password":
			bad = json.Unmarshal(value, &newPassword) != nil || newPassword == nil
		case "RoleId":
			bad = json.Unmarshal(value, &newRoleID) != nil || newRoleID == nil
		case "Enabled":
			bad = json.Unmarshal(value, &newEnabled) != nil || newEnabled == nil
		case "Locked":
			var locked *bool
			if json.Unmarshal(value, &locked) != nil || locked == nil || *locked {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "Locked may only be set to false"})

				return
			}

			unlock = true
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "property is not patchable: " + key})

			return
		}

		if bad {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid value for property " + key})

			return
		}
	}

	if newUserName != nil && !util.ValidUserName(*newUserName) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrUsernamePolicy.Error()})

		return
	}

	var passwordHash string

	if newPassword != nil {
		if !h.checkPassword(ctx, *newPassword) {
			return
		}

		passwordHash, err = util.HashPassword(*newPassword)
		if err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "hashing password failed"})

			return
		}
	}

	if newRoleID != nil {
		if _, err := h.store.GetRole(*newRoleID); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "role does not exist: " + *newRoleID})

			return
		}
	}

	err = h.store.UpdateAccount(accountID, func(target *accounts.Account) error {
		if newUserName != nil {
			target.UserName = *newUserName
		}

		if newPassword != nil {
			target.Password = passwordHash
		}

		if newRoleID != nil {
			target.RoleID = *newRoleID
		}

		if newEnabled != nil {
			target.Enabled = *newEnabled
		}

		return nil
	})
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if unlock {
		h.tracker.Unlock(accountID)
	}

	updated, err := h.store.GetAccount(accountID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.Header("ETag", accountETag(updated))

	ctx.JSON(http.StatusOK, h.accountResource(updated))
}

func (h *Handler) deleteAccount(ctx *gin.Context) {
	accountID := ctx.Param("accountid")

	if err := h.store.DeleteAccount(accountID); err != nil {
		switch {
		case stderrors.Is(err, errors.ErrAccountNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		case stderrors.Is(err, errors.ErrAccountNotDeletable):
			ctx.Header("Allow", "GET, PATCH")
			ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": "account cannot be deleted"})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}

		return
	}

	h.tracker.Remove(accountID)

	ctx.Status(http.StatusNoContent)
}

func (h *Handler) getRoles(ctx *gin.Context) {
	ids := h.store.ListRoleIDs()

	members := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		members = append(members, gin.H{"@odata.id": definitions.RolesURI + "/" + id})
	}

	ctx.JSON(http.StatusOK, gin.H{
		"@odata.id":           definitions.RolesURI,
		"@odata.type":         "#RoleCollection.RoleCollection",
		"Name":                "Roles Collection",
		"Members@odata.count": len(members),
		"Members":             members,
	})
}

func roleResource(role accounts.Role) gin.H {
	return gin.H{
		"@odata.id":          definitions.RolesURI + "/" + role.ID,
		"@odata.type":        "#Role.v1_2_2.Role",
		"Id":                 role.ID,
		"Name":               role.Name,
		"Description":        role.Description,
		"IsPredefined":       role.IsPredefined,
		"AssignedPrivileges": role.AssignedPrivileges.Strings(),
	}
}

type rolePost struct {
	ID                 *string  `json:"Id"`
	RoleID             *string  `json:"RoleId"`
	AssignedPrivileges []string `json:"AssignedPrivileges"`
}

// postRoles creates a custom role. The identifier may arrive as RoleId or Id.
func (h *Handler) postRoles(ctx *gin.Context) {
	var body rolePost

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	id := ""
	if body.RoleID != nil {
		id = *body.RoleID
	} else if body.ID != nil {
		id = *body.ID
	}

	if id == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "RoleId is required"})

		return
	}

	if body.AssignedPrivileges == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "AssignedPrivileges is required"})

		return
	}

	privileges, invalid := definitions.ParsePrivileges(body.AssignedPrivileges)
	if invalid != "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid privilege: " + invalid})

		return
	}

	role := accounts.Role{
		ID:                 id,
		Name:               "User Role",
		Description:        "Custom User Role",
		IsPredefined:       false,
		AssignedPrivileges: privileges,
	}

	if err := h.store.CreateRole(role); err != nil {
		if stderrors.Is(err, errors.ErrRoleExists) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "role already exists"})

			return
		}

		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.Header("Location", definitions.RolesURI+"/"+id)

	ctx.JSON(http.StatusCreated, roleResource(role))
}

func (h *Handler) getRole(ctx *gin.Context) {
	role, err := h.store.GetRole(ctx.Param("roleid"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "role not found"})

		return
	}

	ctx.JSON(http.StatusOK, roleResource(role))
}

// patchRole replaces the assigned privileges of a custom role.
func (h *Handler) patchRole(ctx *gin.Context) {
	roleID := ctx.Param("roleid")

	raw := map[string]json.RawMessage{}
	if err := ctx.ShouldBindJSON(&raw); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})

		return
	}

	var names []string

	for key, value := range raw {
		if key != "AssignedPrivileges" {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "property is not patchable: " + key})

			return
		}

		if err := json.Unmarshal(value, &names); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "AssignedPrivileges must be a list of privilege names"})

			return
		}
	}

	if names == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "no patchable property supplied"})

		return
	}

	privileges, invalid := definitions.ParsePrivileges(names)
	if invalid != "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid privilege: " + invalid})

		return
	}

	if err := h.store.UpdateRolePrivileges(roleID, privileges); err != nil {
		switch {
		case stderrors.Is(err, errors.ErrRoleNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
		case stderrors.Is(err, errors.ErrRolePredefined):
			ctx.Header("Allow", "GET")
			ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": "predefined roles cannot be modified"})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}

		return
	}

	role, err := h.store.GetRole(roleID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, roleResource(role))
}

func (h *Handler) deleteRole(ctx *gin.Context) {
	if err := h.store.DeleteRole(ctx.Param("roleid")); err != nil {
		switch {
		case stderrors.Is(err, errors.ErrRoleNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
		case stderrors.Is(err, errors.ErrRolePredefined):
			ctx.Header("Allow", "GET")
			ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": "predefined roles cannot be deleted"})
		case stderrors.Is(err, errors.ErrRoleInUse):
			ctx.JSON(http.StatusConflict, gin.H{"error": "role is referenced by an existing account"})
		default:
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}

		return
	}

	ctx.Status(http.StatusNoContent)
}
