package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/fintechindex/internal/auth"
	"github.com/geocoder89/fintechindex/internal/domain/startup"
	"github.com/geocoder89/fintechindex/internal/http/middlewares"
	"github.com/geocoder89/fintechindex/internal/notifications"
	"github.com/gin-gonic/gin"
)

type StartupStore interface {
	List(ctx context.Context, f startup.ListFilter) ([]startup.Startup, error)
	ListPending(ctx context.Context) ([]startup.Startup, error)
	Get(ctx context.Context, id string) (startup.Startup, error)
	Create(ctx context.Context, s startup.Startup) (startup.Startup, error)
	CreateMany(ctx context.Context, items []startup.Startup) ([]startup.Startup, error)
	Update(ctx context.Context, s startup.Startup) (startup.Startup, error)
	Delete(ctx context.Context, id string) (startup.Startup, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

// Verifier is satisfied by *verification.Workflow.
type Verifier interface {
	VerifyOne(ctx context.Context, id, status, notes string, actor auth.Identity) (startup.Startup, error)
	VerifyBulk(ctx context.Context, ids []string, status, notes string, actor auth.Identity) (int64, error)
}

type StartupsHandler struct {
	store  StartupStore
	verify Verifier
	notify Notifier
	now    func() time.Time
}

func NewStartupsHandler(store StartupStore, verify Verifier, notify Notifier) *StartupsHandler {
	return &StartupsHandler{
		store:  store,
		verify: verify,
		notify: notify,
		now:    time.Now,
	}
}

// List is the public directory: approved startups only.
func (h *StartupsHandler) List(ctx *gin.Context) {
	approved := startup.StatusApproved
	f := startup.ListFilter{Status: &approved}

	if raw := strings.TrimSpace(ctx.Query("country")); raw != "" {
		f.Country = &raw
	}
	if raw := strings.TrimSpace(ctx.Query("sector")); raw != "" {
		f.Sector = &raw
	}
	if raw := strings.TrimSpace(ctx.Query("search")); raw != "" {
		f.Search = &raw
	}

	limit, ok := parseLimit(ctx)
	if !ok {
		return
	}
	f.Limit = startup.ClampLimit(limit)

	items, err := h.store.List(ctx.Request.Context(), f)
	if err != nil {
		respondStoreError(ctx, err, "No startups", "Could not list startups")
		return
	}

	if items == nil {
		items = []startup.Startup{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, items)
}

func (h *StartupsHandler) Pending(ctx *gin.Context) {
	items, err := h.store.ListPending(ctx.Request.Context())
	if err != nil {
		respondStoreError(ctx, err, "No startups", "Could not list pending startups")
		return
	}

	RespondListWithETag(ctx, "startups", items)
}

// Get hides startups that are not approved from everyone but admins and
// editors. Hidden entries answer 404, not 403.
func (h *StartupsHandler) Get(ctx *gin.Context) {
	s, err := h.store.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondStoreError(ctx, err, "Startup not found", "Could not fetch startup")
		return
	}

	if s.VerificationStatus != startup.StatusApproved && !canSeeUnapproved(ctx) {
		RespondNotFound(ctx, "Startup not found")
		return
	}

	ctx.JSON(http.StatusOK, s)
}

func (h *StartupsHandler) Create(ctx *gin.Context) {
	var req startup.CreateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	sub := submitter(ctx)

	s, err := h.store.Create(ctx.Request.Context(), startup.NewFromCreateRequest(req, sub, h.now()))
	if err != nil {
		respondStoreError(ctx, err, "Startup not found", "Could not create startup")
		return
	}

	message := "Startup added and approved"
	if !sub.IsAdmin() {
		message = "Startup submitted for review"
		h.notify.Dispatch(ctx.Request.Context(), notifications.StartupSubmitted(s))
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": message,
		"startup": s,
	})
}

func (h *StartupsHandler) Bulk(ctx *gin.Context) {
	var req startup.BulkCreateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	sub := submitter(ctx)
	now := h.now()

	items := make([]startup.Startup, len(req.Startups))
	for i, r := range req.Startups {
		items[i] = startup.NewFromCreateRequest(r, sub, now)
	}

	created, err := h.store.CreateMany(ctx.Request.Context(), items)
	if err != nil {
		respondStoreError(ctx, err, "Startup not found", "Could not create startups")
		return
	}

	message := fmt.Sprintf("%d startups added and approved", len(created))
	if !sub.IsAdmin() {
		message = fmt.Sprintf("%d startups submitted for review", len(created))
		if len(created) > 0 {
			h.notify.Dispatch(ctx.Request.Context(), notifications.StartupsSubmitted(len(created), created[0].AddedBy))
		}
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message":  message,
		"startups": created,
	})
}

func (h *StartupsHandler) Update(ctx *gin.Context) {
	var req startup.UpdateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	s, err := h.store.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondStoreError(ctx, err, "Startup not found", "Could not update startup")
		return
	}

	req.Apply(&s)

	s, err = h.store.Update(ctx.Request.Context(), s)
	if err != nil {
		respondStoreError(ctx, err, "Startup not found", "Could not update startup")
		return
	}

	ctx.JSON(http.StatusOK, s)
}

func (h *StartupsHandler) Verify(ctx *gin.Context) {
	var req startup.VerifyRequest

	if !BindJSON(ctx, &req) {
		return
	}

	actor, _ := middlewares.IdentityFromContext(ctx)

	s, err := h.verify.VerifyOne(ctx.Request.Context(), ctx.Param("id"), req.Status, req.Notes, actor)
	if err != nil {
		if errors.Is(err, startup.ErrInvalidStatus) {
			RespondBadRequest(ctx, err.Error(), gin.H{"field": "status"})
			return
		}
		respondStoreError(ctx, err, "Startup not found", "Could not verify startup")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Startup %s", s.VerificationStatus),
		"startup": s,
	})
}

func (h *StartupsHandler) BulkVerify(ctx *gin.Context) {
	var req startup.BulkVerifyRequest

	if !BindJSON(ctx, &req) {
		return
	}

	actor, _ := middlewares.IdentityFromContext(ctx)

	n, err := h.verify.VerifyBulk(ctx.Request.Context(), req.IDs, req.Status, req.Notes, actor)
	if err != nil {
		switch {
		case errors.Is(err, startup.ErrNoIDs):
			RespondBadRequest(ctx, err.Error(), gin.H{"field": "ids"})
		case errors.Is(err, startup.ErrInvalidStatus):
			RespondBadRequest(ctx, err.Error(), gin.H{"field": "status"})
		default:
			respondStoreError(ctx, err, "No startups", "Could not verify startups")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":       fmt.Sprintf("%d startups updated", n),
		"modifiedCount": n,
	})
}

func (h *StartupsHandler) Delete(ctx *gin.Context) {
	s, err := h.store.Delete(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondStoreError(ctx, err, "Startup not found", "Could not delete startup")
		return
	}

	actor, _ := middlewares.IdentityFromContext(ctx)
	h.notify.Dispatch(ctx.Request.Context(), notifications.StartupDeleted(s, actor.Email))

	ctx.JSON(http.StatusOK, gin.H{
		"message":        "Startup deleted",
		"deletedStartup": s,
	})
}

func (h *StartupsHandler) BulkDelete(ctx *gin.Context) {
	var req startup.BulkDeleteRequest

	if !BindJSON(ctx, &req) {
		return
	}

	ids, err := startup.NormalizeIDs(req.IDs)
	if err != nil {
		RespondBadRequest(ctx, err.Error(), gin.H{"field": "ids"})
		return
	}

	n, err := h.store.DeleteMany(ctx.Request.Context(), ids)
	if err != nil {
		respondStoreError(ctx, err, "No startups", "Could not delete startups")
		return
	}

	if n > 0 {
		actor, _ := middlewares.IdentityFromContext(ctx)
		h.notify.Dispatch(ctx.Request.Context(), notifications.StartupsBulkDeleted(n, actor.Email))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("%d startups deleted", n),
		"deletedCount": n,
	})
}

func submitter(ctx *gin.Context) startup.Submitter {
	if id, ok := middlewares.IdentityFromContext(ctx); ok {
		return startup.Submitter{Identity: &id}
	}
	return startup.Submitter{}
}

func canSeeUnapproved(ctx *gin.Context) bool {
	id, ok := middlewares.IdentityFromContext(ctx)
	return ok && (id.Role == auth.RoleAdmin || id.Role == auth.RoleEditor)
}
