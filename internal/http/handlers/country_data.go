package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/geocoder89/fintechindex/internal/actorctx"
	"github.com/geocoder89/fintechindex/internal/domain/country"
	"github.com/geocoder89/fintechindex/internal/ingest"
	"github.com/geocoder89/fintechindex/internal/notifications"
	"github.com/geocoder89/fintechindex/internal/observability"
	"github.com/gin-gonic/gin"
)

type CountryStore interface {
	List(ctx context.Context, f country.ListFilter) ([]country.Record, error)
	Get(ctx context.Context, countryID string, year int) (country.Record, error)
	Stats(ctx context.Context) (country.Stats, error)
	DistinctYears(ctx context.Context) ([]int, error)
	DistinctCountries(ctx context.Context) ([]country.CountryName, error)
	Create(ctx context.Context, rec country.Record) (country.Record, error)
	Update(ctx context.Context, rec country.Record) (country.Record, error)
	Delete(ctx context.Context, countryID string, year int) error
	DeleteByYear(ctx context.Context, year int) (int64, error)
	DeleteByCountryName(ctx context.Context, name string) (int64, error)
	DeleteByIDs(ctx context.Context, ids []string, year *int) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

type BatchInserter interface {
	Insert(ctx context.Context, recs []country.Record) (ingest.Result, error)
}

type CountryDataHandler struct {
	store  CountryStore
	bulk   BatchInserter
	notify Notifier
	prom   *observability.Prom
}

func NewCountryDataHandler(store CountryStore, bulk BatchInserter, notify Notifier, prom *observability.Prom) *CountryDataHandler {
	return &CountryDataHandler{
		store:  store,
		bulk:   bulk,
		notify: notify,
		prom:   prom,
	}
}

func (h *CountryDataHandler) List(ctx *gin.Context) {
	var f country.ListFilter

	if raw := strings.TrimSpace(ctx.Query("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			RespondBadRequest(ctx, "year must be an integer", gin.H{"field": "year"})
			return
		}
		f.Year = &year
	}

	if raw := strings.TrimSpace(ctx.Query("countryId")); raw != "" {
		f.CountryID = &raw
	}

	if raw := strings.TrimSpace(ctx.Query("search")); raw != "" {
		f.Search = &raw
	}

	order, err := country.ParseSort(ctx.Query("sort"))
	if err != nil {
		RespondBadRequest(ctx, "sort must be one of year, score, name", gin.H{"field": "sort"})
		return
	}
	f.Sort = order

	limit, ok := parseLimit(ctx)
	if !ok {
		return
	}
	f.Limit = country.ClampLimit(limit)

	recs, err := h.store.List(ctx.Request.Context(), f)
	if err != nil {
		respondStoreError(ctx, err, "No records", "Could not list country data")
		return
	}

	if recs == nil {
		recs = []country.Record{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, recs)
}

func (h *CountryDataHandler) Stats(ctx *gin.Context) {
	st, err := h.store.Stats(ctx.Request.Context())
	if err != nil {
		respondStoreError(ctx, err, "No records", "Could not compute statistics")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, st)
}

func (h *CountryDataHandler) Years(ctx *gin.Context) {
	years, err := h.store.DistinctYears(ctx.Request.Context())
	if err != nil {
		respondStoreError(ctx, err, "No records", "Could not list years")
		return
	}

	if years == nil {
		years = []int{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, years)
}

func (h *CountryDataHandler) Countries(ctx *gin.Context) {
	names, err := h.store.DistinctCountries(ctx.Request.Context())
	if err != nil {
		respondStoreError(ctx, err, "No records", "Could not list countries")
		return
	}

	if names == nil {
		names = []country.CountryName{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, names)
}

func (h *CountryDataHandler) Get(ctx *gin.Context) {
	id, year, ok := recordKey(ctx)
	if !ok {
		return
	}

	rec, err := h.store.Get(ctx.Request.Context(), id, year)
	if err != nil {
		respondStoreError(ctx, err, "Country record not found", "Could not fetch country record")
		return
	}

	ctx.JSON(http.StatusOK, rec)
}

func (h *CountryDataHandler) Create(ctx *gin.Context) {
	var req country.CreateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	rec := country.NewFromCreateRequest(req, actorctx.EmailOr(ctx.Request.Context(), ""))

	created, err := h.store.Create(ctx.Request.Context(), rec)
	if err != nil {
		if errors.Is(err, country.ErrDuplicate) {
			RespondConflict(ctx, "conflict", fmt.Sprintf("A record for %s in %d already exists.", rec.CountryID, rec.Year))
			return
		}
		respondStoreError(ctx, err, "Country record not found", "Could not create country record")
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (h *CountryDataHandler) Update(ctx *gin.Context) {
	id, year, ok := recordKey(ctx)
	if !ok {
		return
	}

	var req country.UpdateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	rec, err := h.store.Get(ctx.Request.Context(), id, year)
	if err != nil {
		respondStoreError(ctx, err, "Country record not found", "Could not update country record")
		return
	}

	req.Apply(&rec, actorctx.EmailOr(ctx.Request.Context(), ""))

	rec, err = h.store.Update(ctx.Request.Context(), rec)
	if err != nil {
		respondStoreError(ctx, err, "Country record not found", "Could not update country record")
		return
	}

	ctx.JSON(http.StatusOK, rec)
}

func (h *CountryDataHandler) Delete(ctx *gin.Context) {
	id, year, ok := recordKey(ctx)
	if !ok {
		return
	}

	if err := h.store.Delete(ctx.Request.Context(), id, year); err != nil {
		respondStoreError(ctx, err, "Country record not found", "Could not delete country record")
		return
	}

	h.deleted(ctx, fmt.Sprintf("%s %d", id, year), 1)

	ctx.JSON(http.StatusOK, gin.H{
		"message":      "Country record deleted",
		"deletedCount": 1,
	})
}

func (h *CountryDataHandler) DeleteByYear(ctx *gin.Context) {
	year, err := strconv.Atoi(ctx.Param("year"))
	if err != nil {
		RespondBadRequest(ctx, "year must be an integer", gin.H{"field": "year"})
		return
	}

	n, err := h.store.DeleteByYear(ctx.Request.Context(), year)
	if err != nil {
		respondStoreError(ctx, err, "No records found for that year", "Could not delete records")
		return
	}

	if n == 0 {
		RespondNotFound(ctx, fmt.Sprintf("No records found for year %d", year))
		return
	}

	h.deleted(ctx, fmt.Sprintf("year %d", year), n)

	ctx.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("Deleted %d records for year %d", n, year),
		"deletedCount": n,
	})
}

func (h *CountryDataHandler) DeleteByCountry(ctx *gin.Context) {
	name := strings.TrimSpace(ctx.Param("name"))
	if name == "" {
		RespondBadRequest(ctx, "country name is required", gin.H{"field": "name"})
		return
	}

	n, err := h.store.DeleteByCountryName(ctx.Request.Context(), name)
	if err != nil {
		respondStoreError(ctx, err, "No records found for that country", "Could not delete records")
		return
	}

	if n == 0 {
		RespondNotFound(ctx, fmt.Sprintf("No records found for %s", name))
		return
	}

	h.deleted(ctx, "country "+name, n)

	ctx.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("Deleted %d records for %s", n, name),
		"deletedCount": n,
	})
}

func (h *CountryDataHandler) DeleteSelective(ctx *gin.Context) {
	var req country.SelectiveDeleteRequest

	if !BindJSON(ctx, &req) {
		return
	}

	ids := make([]string, 0, len(req.IDs))
	seen := make(map[string]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		id = country.NormalizeID(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		RespondBadRequest(ctx, "ids must be a non-empty list", gin.H{"field": "ids"})
		return
	}

	n, err := h.store.DeleteByIDs(ctx.Request.Context(), ids, req.Year)
	if err != nil {
		respondStoreError(ctx, err, "No matching records", "Could not delete records")
		return
	}

	if n == 0 {
		RespondNotFound(ctx, "No matching records")
		return
	}

	scope := strings.Join(ids, ", ")
	if req.Year != nil {
		scope += fmt.Sprintf(" in %d", *req.Year)
	}
	h.deleted(ctx, scope, n)

	ctx.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("Deleted %d records", n),
		"deletedCount": n,
	})
}

func (h *CountryDataHandler) DeleteAll(ctx *gin.Context) {
	rctx := ctx.Request.Context()

	before, err := h.store.Count(rctx)
	if err != nil {
		respondStoreError(ctx, err, "No records", "Could not delete records")
		return
	}

	n, err := h.store.DeleteAll(rctx)
	if err != nil {
		respondStoreError(ctx, err, "No records", "Could not delete records")
		return
	}

	after, err := h.store.Count(rctx)
	if err != nil {
		respondStoreError(ctx, err, "No records", "Could not delete records")
		return
	}

	if n > 0 {
		h.deleted(ctx, "all records", n)
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("Deleted %d records", n),
		"deletedCount": n,
		"beforeCount":  before,
		"afterCount":   after,
	})
}

func (h *CountryDataHandler) Bulk(ctx *gin.Context) {
	var req country.BulkCreateRequest

	if !BindJSON(ctx, &req) {
		return
	}

	by := actorctx.EmailOr(ctx.Request.Context(), "")

	recs := make([]country.Record, len(req.Records))
	for i, r := range req.Records {
		recs[i] = country.NewFromCreateRequest(r, by)
	}

	res, err := h.bulk.Insert(ctx.Request.Context(), recs)
	if err != nil {
		var conflictErr *ingest.ConflictError

		switch {
		case errors.Is(err, ingest.ErrEmptyBatch):
			RespondBadRequest(ctx, "records must be a non-empty list", gin.H{"field": "records"})
		case errors.As(err, &conflictErr):
			h.prom.AddBulkRecords("rejected", len(recs))
			RespondError(ctx, http.StatusBadRequest, "duplicate_entries",
				"Duplicate entries found. Nothing was inserted.",
				gin.H{"conflicts": conflictErr.Conflicts},
			)
		default:
			respondStoreError(ctx, err, "No records", "Could not insert records")
		}
		return
	}

	h.prom.AddBulkRecords("inserted", int(res.Inserted))
	h.prom.AddBulkRecords("skipped", int(res.Skipped))

	if res.Inserted > 0 {
		h.notify.Dispatch(ctx.Request.Context(), notifications.CountryDataUploaded(res.Inserted, by))
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message":       fmt.Sprintf("Inserted %d records", res.Inserted),
		"insertedCount": res.Inserted,
		"skippedCount":  res.Skipped,
	})
}

func (h *CountryDataHandler) deleted(ctx *gin.Context, scope string, n int64) {
	by := actorctx.EmailOr(ctx.Request.Context(), "")
	h.notify.Dispatch(ctx.Request.Context(), notifications.CountryDataDeleted(scope, n, by))
}

func recordKey(ctx *gin.Context) (string, int, bool) {
	id := country.NormalizeID(ctx.Param("id"))
	if id == "" {
		RespondBadRequest(ctx, "country id is required", gin.H{"field": "id"})
		return "", 0, false
	}

	year, err := strconv.Atoi(ctx.Param("year"))
	if err != nil {
		RespondBadRequest(ctx, "year must be an integer", gin.H{"field": "year"})
		return "", 0, false
	}

	return id, year, true
}

func parseLimit(ctx *gin.Context) (int, bool) {
	raw := strings.TrimSpace(ctx.Query("limit"))
	if raw == "" {
		return 0, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		RespondBadRequest(ctx, "limit must be a non-negative integer", gin.H{"field": "limit"})
		return 0, false
	}

	return limit, true
}
