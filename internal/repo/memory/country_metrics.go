package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/fintechindex/internal/domain/country"
)

type CountryMetricsRepo struct {
	mu    sync.RWMutex
	items map[country.Key]country.Record
}

func NewCountryMetricsRepo() *CountryMetricsRepo {
	return &CountryMetricsRepo{
		items: make(map[country.Key]country.Record),
	}
}

func (r *CountryMetricsRepo) snapshot(match func(country.Record) bool) []country.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]country.Record, 0, len(r.items))
	for _, rec := range r.items {
		if match == nil || match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func (r *CountryMetricsRepo) List(ctx context.Context, f country.ListFilter) ([]country.Record, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	out := r.snapshot(f.Matches)
	country.SortRecords(out, f.Sort)

	if limit := country.ClampLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (r *CountryMetricsRepo) Get(ctx context.Context, countryID string, year int) (country.Record, error) {
	if err := checkCtx(ctx); err != nil {
		return country.Record{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.items[country.Key{CountryID: country.NormalizeID(countryID), Year: year}]
	if !ok {
		return country.Record{}, country.ErrNotFound
	}

	return rec, nil
}

func (r *CountryMetricsRepo) Stats(ctx context.Context) (country.Stats, error) {
	if err := checkCtx(ctx); err != nil {
		return country.Stats{}, err
	}

	return country.ComputeStats(r.snapshot(nil)), nil
}

func (r *CountryMetricsRepo) DistinctYears(ctx context.Context) ([]int, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	return country.ComputeStats(r.snapshot(nil)).Years, nil
}

// DistinctCountries returns one entry per country id, name ascending. When a
// country was renamed across years the most recent year's name wins.
func (r *CountryMetricsRepo) DistinctCountries(ctx context.Context) ([]country.CountryName, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	latest := make(map[string]country.Record)
	for _, rec := range r.snapshot(nil) {
		if cur, ok := latest[rec.CountryID]; !ok || rec.Year > cur.Year {
			latest[rec.CountryID] = rec
		}
	}

	out := make([]country.CountryName, 0, len(latest))
	for id, rec := range latest {
		out = append(out, country.CountryName{CountryID: id, Name: rec.Name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CountryID < out[j].CountryID
	})

	return out, nil
}

func (r *CountryMetricsRepo) Create(ctx context.Context, rec country.Record) (country.Record, error) {
	if err := checkCtx(ctx); err != nil {
		return country.Record{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[rec.Key()]; exists {
		return country.Record{}, country.ErrDuplicate
	}
	r.items[rec.Key()] = rec

	return rec, nil
}

func (r *CountryMetricsRepo) Update(ctx context.Context, rec country.Record) (country.Record, error) {
	if err := checkCtx(ctx); err != nil {
		return country.Record{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.items[rec.Key()]
	if !ok {
		return country.Record{}, country.ErrNotFound
	}

	rec.CreatedBy = cur.CreatedBy
	rec.CreatedAt = cur.CreatedAt
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	r.items[rec.Key()] = rec

	return rec, nil
}

func (r *CountryMetricsRepo) Delete(ctx context.Context, countryID string, year int) error {
	n, err := r.deleteWhere(ctx, func(rec country.Record) bool {
		return rec.CountryID == country.NormalizeID(countryID) && rec.Year == year
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return country.ErrNotFound
	}
	return nil
}

func (r *CountryMetricsRepo) DeleteByYear(ctx context.Context, year int) (int64, error) {
	return r.deleteWhere(ctx, func(rec country.Record) bool { return rec.Year == year })
}

// DeleteByCountryName removes every record whose name contains name,
// ignoring case. A blank name matches nothing.
func (r *CountryMetricsRepo) DeleteByCountryName(ctx context.Context, name string) (int64, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, checkCtx(ctx)
	}

	return r.deleteWhere(ctx, func(rec country.Record) bool {
		return strings.Contains(strings.ToLower(rec.Name), name)
	})
}

// DeleteByIDs removes every year of the given countries, or only the given
// year when one is passed.
func (r *CountryMetricsRepo) DeleteByIDs(ctx context.Context, ids []string, year *int) (int64, error) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[country.NormalizeID(id)] = struct{}{}
	}

	return r.deleteWhere(ctx, func(rec country.Record) bool {
		if _, ok := set[rec.CountryID]; !ok {
			return false
		}
		return year == nil || rec.Year == *year
	})
}

func (r *CountryMetricsRepo) DeleteAll(ctx context.Context) (int64, error) {
	return r.deleteWhere(ctx, func(country.Record) bool { return true })
}

func (r *CountryMetricsRepo) Count(ctx context.Context) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.items)), nil
}

// ExistingKeys returns the subset of keys already stored.
func (r *CountryMetricsRepo) ExistingKeys(ctx context.Context, keys []country.Key) ([]country.Key, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]country.Key, 0)
	for _, k := range keys {
		if _, ok := r.items[k]; ok {
			out = append(out, k)
		}
	}

	return out, nil
}

// InsertMany stores the batch unordered. A key that already exists is skipped,
// not overwritten, and not counted.
func (r *CountryMetricsRepo) InsertMany(ctx context.Context, recs []country.Record) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var inserted int64
	for _, rec := range recs {
		if _, exists := r.items[rec.Key()]; exists {
			continue
		}
		r.items[rec.Key()] = rec
		inserted++
	}

	return inserted, nil
}

func (r *CountryMetricsRepo) deleteWhere(ctx context.Context, match func(country.Record) bool) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, rec := range r.items {
		if match(rec) {
			delete(r.items, k)
			n++
		}
	}

	return n, nil
}
