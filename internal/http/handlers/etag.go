package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RespondJSONWithETag writes payload with a strong ETag over its encoded
// bytes. A GET whose If-None-Match names that tag gets 304 and no body.
func RespondJSONWithETag(ctx *gin.Context, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		ctx.JSON(status, payload)
		return
	}

	etag := etagFor(body)
	ctx.Header("ETag", etag)

	if ctx.Request.Method == http.MethodGet && ifNoneMatchMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.Data(status, "application/json; charset=utf-8", body)
}

// RespondListWithETag wraps items as {"count": n, key: items}. A nil slice is
// sent as [].
func RespondListWithETag[T any](ctx *gin.Context, key string, items []T) {
	if items == nil {
		items = []T{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"count": len(items),
		key:     items,
	})
}

func etagFor(body []byte) string {
	sum := sha256.Sum256(body)

	// 128 bits is plenty to tell two payloads apart
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func ifNoneMatchMatches(headerValue, currentETag string) bool {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" || currentETag == "" {
		return false
	}

	if headerValue == "*" {
		return true
	}

	// weak comparison: W/"x" matches "x"
	current := strings.TrimPrefix(currentETag, "W/")
	for _, part := range strings.Split(headerValue, ",") {
		if strings.TrimPrefix(strings.TrimSpace(part), "W/") == current {
			return true
		}
	}

	return false
}
