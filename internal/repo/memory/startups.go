package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/fintechindex/internal/domain/startup"
)

type StartupsRepo struct {
	mu    sync.RWMutex
	items map[string]startup.Startup
}

func NewStartupsRepo() *StartupsRepo {
	return &StartupsRepo{
		items: make(map[string]startup.Startup),
	}
}

// List returns matching startups, newest first.
func (r *StartupsRepo) List(ctx context.Context, f startup.ListFilter) ([]startup.Startup, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	out := r.collect(f.Matches)
	sort.SliceStable(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })

	if limit := startup.ClampLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListPending returns the review queue, oldest submission first.
func (r *StartupsRepo) ListPending(ctx context.Context) ([]startup.Startup, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	out := r.collect(func(s startup.Startup) bool { return s.VerificationStatus == startup.StatusPending })
	sort.SliceStable(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })

	return out, nil
}

func (r *StartupsRepo) Get(ctx context.Context, id string) (startup.Startup, error) {
	if err := checkCtx(ctx); err != nil {
		return startup.Startup{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.items[id]
	if !ok {
		return startup.Startup{}, startup.ErrNotFound
	}
	return s, nil
}

func (r *StartupsRepo) Create(ctx context.Context, s startup.Startup) (startup.Startup, error) {
	if err := checkCtx(ctx); err != nil {
		return startup.Startup{}, err
	}

	r.mu.Lock()
	r.items[s.ID] = s
	r.mu.Unlock()

	return s, nil
}

func (r *StartupsRepo) CreateMany(ctx context.Context, items []startup.Startup) ([]startup.Startup, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range items {
		r.items[s.ID] = s
	}
	return items, nil
}

// Update writes descriptive fields. Verification state and provenance are
// kept from the stored row.
func (r *StartupsRepo) Update(ctx context.Context, s startup.Startup) (startup.Startup, error) {
	if err := checkCtx(ctx); err != nil {
		return startup.Startup{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.items[s.ID]
	if !ok {
		return startup.Startup{}, startup.ErrNotFound
	}

	cur.Name = s.Name
	cur.Country = s.Country
	cur.Sectors = s.Sectors
	cur.FoundedYear = s.FoundedYear
	cur.Description = s.Description
	cur.Website = s.Website
	cur.UpdatedAt = time.Now().UTC()
	r.items[s.ID] = cur

	return cur, nil
}

func (r *StartupsRepo) SetVerification(ctx context.Context, id string, v startup.Verification) (startup.Startup, error) {
	if err := checkCtx(ctx); err != nil {
		return startup.Startup{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.items[id]
	if !ok {
		return startup.Startup{}, startup.ErrNotFound
	}

	v.ApplyTo(&s)
	r.items[id] = s

	return s, nil
}

// SetVerificationMany applies v to every existing id and reports how many
// were modified. Unknown ids are ignored.
func (r *StartupsRepo) SetVerificationMany(ctx context.Context, ids []string, v startup.Verification) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, id := range ids {
		s, ok := r.items[id]
		if !ok {
			continue
		}
		v.ApplyTo(&s)
		r.items[id] = s
		n++
	}
	return n, nil
}

func (r *StartupsRepo) Delete(ctx context.Context, id string) (startup.Startup, error) {
	if err := checkCtx(ctx); err != nil {
		return startup.Startup{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.items[id]
	if !ok {
		return startup.Startup{}, startup.ErrNotFound
	}
	delete(r.items, id)

	return s, nil
}

func (r *StartupsRepo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if err := checkCtx(ctx); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, id := range ids {
		if _, ok := r.items[id]; ok {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}

func (r *StartupsRepo) collect(match func(startup.Startup) bool) []startup.Startup {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]startup.Startup, 0, len(r.items))
	for _, s := range r.items {
		if match(s) {
			out = append(out, s)
		}
	}
	return out
}
