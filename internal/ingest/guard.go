// Package ingest guards bulk uploads of country metric records against
// duplicate (country, year) keys before anything is written.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/fintechindex/internal/domain/country"
)

var ErrEmptyBatch = errors.New("no records to insert")

const (
	ReasonDuplicateInBatch = "duplicate_in_batch"
	ReasonAlreadyExists    = "already_exists"
)

type Conflict struct {
	Index     int    `json:"index"`
	CountryID string `json:"countryId"`
	Year      int    `json:"year"`
	Reason    string `json:"reason"`
}

// ConflictError lists every batch entry that collides, either with another
// entry of the same batch or with a stored record.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d duplicate entries in batch", len(e.Conflicts))
}

type Store interface {
	ExistingKeys(ctx context.Context, keys []country.Key) ([]country.Key, error)
	InsertMany(ctx context.Context, recs []country.Record) (int64, error)
}

type Result struct {
	Inserted int64
	// Skipped counts records that appeared in the store between the
	// existence check and the insert.
	Skipped int64
}

type Guard struct {
	store Store
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Insert writes the batch only when no key repeats inside it and none is
// already stored. Otherwise nothing is written and a *ConflictError lists
// every colliding entry in input order. An entry that both repeats and is
// stored appears once per reason.
func (g *Guard) Insert(ctx context.Context, recs []country.Record) (Result, error) {
	if len(recs) == 0 {
		return Result{}, ErrEmptyBatch
	}

	dups := make(map[int]struct{})
	for _, c := range DuplicatesInBatch(recs) {
		dups[c.Index] = struct{}{}
	}

	keys := make([]country.Key, 0, len(recs))
	uniq := make(map[country.Key]struct{}, len(recs))
	for _, r := range recs {
		if _, ok := uniq[r.Key()]; ok {
			continue
		}
		uniq[r.Key()] = struct{}{}
		keys = append(keys, r.Key())
	}

	existing, err := g.store.ExistingKeys(ctx, keys)
	if err != nil {
		return Result{}, fmt.Errorf("check existing keys: %w", err)
	}

	hit := make(map[country.Key]struct{}, len(existing))
	for _, k := range existing {
		hit[k] = struct{}{}
	}

	if len(dups) > 0 || len(hit) > 0 {
		conflicts := make([]Conflict, 0, len(dups)+len(hit))
		for i, r := range recs {
			if _, ok := dups[i]; ok {
				conflicts = append(conflicts, Conflict{Index: i, CountryID: r.CountryID, Year: r.Year, Reason: ReasonDuplicateInBatch})
			}
			if _, ok := hit[r.Key()]; ok {
				conflicts = append(conflicts, Conflict{Index: i, CountryID: r.CountryID, Year: r.Year, Reason: ReasonAlreadyExists})
			}
		}
		return Result{}, &ConflictError{Conflicts: conflicts}
	}

	inserted, err := g.store.InsertMany(ctx, recs)
	if err != nil {
		return Result{}, fmt.Errorf("insert batch: %w", err)
	}

	return Result{Inserted: inserted, Skipped: int64(len(recs)) - inserted}, nil
}

// DuplicatesInBatch reports every entry whose key occurs more than once,
// first occurrence included, in input order.
func DuplicatesInBatch(recs []country.Record) []Conflict {
	seen := make(map[country.Key][]int, len(recs))
	for i, r := range recs {
		seen[r.Key()] = append(seen[r.Key()], i)
	}

	conflicts := make([]Conflict, 0)
	for i, r := range recs {
		if len(seen[r.Key()]) > 1 {
			conflicts = append(conflicts, Conflict{Index: i, CountryID: r.CountryID, Year: r.Year, Reason: ReasonDuplicateInBatch})
		}
	}
	return conflicts
}
