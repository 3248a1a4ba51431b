// Package memory holds map-backed stores used with STORE_DRIVER=memory and in
// tests. They honour the same error contract as the Postgres stores.
package memory

import (
	"context"

	"github.com/geocoder89/fintechindex/internal/sentinel"
)

// checkCtx reports a cancelled or expired request the way a driver would.
func checkCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return sentinel.FromContext(err)
	}
	return nil
}
