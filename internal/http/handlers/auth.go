package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/geocoder89/fintechindex/internal/auth"
	"github.com/geocoder89/fintechindex/internal/domain/user"
	"github.com/geocoder89/fintechindex/internal/http/middlewares"
	"github.com/geocoder89/fintechindex/internal/notifications"
	"github.com/geocoder89/fintechindex/internal/security"
	"github.com/gin-gonic/gin"
)

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	List(ctx context.Context, f user.ListFilter) ([]user.User, error)
	SetVerified(ctx context.Context, id string, verified bool) (user.User, error)
	Update(ctx context.Context, u user.User) (user.User, error)
	Delete(ctx context.Context, id string) (user.User, error)
}

type TokenIssuer interface {
	Issue(userID, email, role string) (string, error)
}

// Notifier is satisfied by *notifications.Dispatcher. Dispatch must not block.
type Notifier interface {
	Dispatch(ctx context.Context, ev notifications.Event)
}

type AuthHandler struct {
	users  UserStore
	tokens TokenIssuer
	notify Notifier
}

func NewAuthHandler(users UserStore, tokens TokenIssuer, notify Notifier) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		notify: notify,
	}
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.Role == auth.RoleAdmin {
		RespondForbidden(ctx, "forbidden", "Admin accounts cannot be self-registered.")
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	u, err := h.users.Create(ctx.Request.Context(), user.NewFromRegisterRequest(req, hash))
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			RespondError(ctx, http.StatusBadRequest, "email_taken", "Email is already in use.", nil)
			return
		}
		respondStoreError(ctx, err, "User not found", "Could not create user")
		return
	}

	h.notify.Dispatch(ctx.Request.Context(), notifications.UserRegistered(u))

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Registration received. An administrator will review your account.",
		"user":    u,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	found, err := h.users.GetByEmail(ctx.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			security.BurnCompare(req.Password)
			RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}
		respondStoreError(ctx, err, "User not found", "Could not sign in")
		return
	}

	if err := security.CheckPassword(found.PasswordHash, req.Password); err != nil {
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	// password before verification status
	if !found.IsVerified {
		RespondForbidden(ctx, "account_not_verified", "Your account is awaiting administrator approval.")
		return
	}

	token, err := h.tokens.Issue(found.ID, found.Email, found.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  found,
	})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	id, ok := middlewares.IdentityFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	u, err := h.users.GetByID(ctx.Request.Context(), id.SubjectID)
	if err != nil {
		respondStoreError(ctx, err, "User not found", "Could not load user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *AuthHandler) ListUsers(ctx *gin.Context) {
	var f user.ListFilter

	if raw := strings.TrimSpace(ctx.Query("verified")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			RespondBadRequest(ctx, "verified must be true or false", gin.H{"field": "verified"})
			return
		}
		f.Verified = &v
	}

	if raw := strings.TrimSpace(ctx.Query("role")); raw != "" {
		switch raw {
		case auth.RoleAdmin, auth.RoleEditor, auth.RoleViewer:
			f.Role = &raw
		default:
			RespondBadRequest(ctx, "role must be one of admin, editor, viewer", gin.H{"field": "role"})
			return
		}
	}

	users, err := h.users.List(ctx.Request.Context(), f)
	if err != nil {
		respondStoreError(ctx, err, "Users not found", "Could not list users")
		return
	}

	RespondListWithETag(ctx, "users", users)
}

func (h *AuthHandler) VerifyUser(ctx *gin.Context) {
	u, err := h.users.SetVerified(ctx.Request.Context(), ctx.Param("id"), true)
	if err != nil {
		respondStoreError(ctx, err, "User not found", "Could not verify user")
		return
	}

	h.notify.Dispatch(ctx.Request.Context(), notifications.UserApproved(u))

	ctx.JSON(http.StatusOK, gin.H{
		"message": "User verified",
		"user":    u,
	})
}

func (h *AuthHandler) UpdateUser(ctx *gin.Context) {
	var req user.UpdateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.users.GetByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondStoreError(ctx, err, "User not found", "Could not update user")
		return
	}

	req.Apply(&u)

	u, err = h.users.Update(ctx.Request.Context(), u)
	if err != nil {
		respondStoreError(ctx, err, "User not found", "Could not update user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *AuthHandler) DeleteUser(ctx *gin.Context) {
	target := ctx.Param("id")

	if caller, ok := middlewares.UserIDFromContext(ctx); ok && caller == target {
		RespondBadRequest(ctx, "You cannot delete your own account", nil)
		return
	}

	u, err := h.users.Delete(ctx.Request.Context(), target)
	if err != nil {
		respondStoreError(ctx, err, "User not found", "Could not delete user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":     "User deleted",
		"deletedUser": u,
	})
}
