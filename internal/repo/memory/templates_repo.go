package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/geocoder89/certhub/internal/domain/template"
)

// TemplatesRepo is the in-memory mirror of the postgres catalog, used by
// handler/service tests that should not need a live database.
type TemplatesRepo struct {
	mu    sync.RWMutex
	items map[string]template.Template
	seq   int // insertion order tiebreaker for "newest overall"
	order map[string]int
}

func NewTemplatesRepo() *TemplatesRepo {
	return &TemplatesRepo{
		items: make(map[string]template.Template),
		order: make(map[string]int),
	}
}

func (r *TemplatesRepo) Create(ctx context.Context, req template.CreateRequest) (template.Template, error) {
	t := template.NewFromCreateRequest(req)

	r.mu.Lock()
	defer r.mu.Unlock()

	maxVersion := 0

	for _, existing := range r.items {
		if existing.Name == t.Name && existing.Version > maxVersion {
			maxVersion = existing.Version
		}
	}

	t.Version = maxVersion + 1
	r.seq++
	r.order[t.ID] = r.seq
	r.items[t.ID] = t

	return t, nil
}

func (r *TemplatesRepo) GetByID(ctx context.Context, id string) (template.Template, error) {
	r.mu.RLock()
	t, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return template.Template{}, template.ErrNotFound
	}

	return t, nil
}

func (r *TemplatesRepo) List(ctx context.Context) ([]template.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]template.Template, 0, len(r.items))

	for _, t := range r.items {
		out = append(out, t)
	}

	// newest first
	sort.Slice(out, func(i, j int) bool {
		return r.order[out[i].ID] > r.order[out[j].ID]
	})

	return out, nil
}

func (r *TemplatesRepo) Delete(ctx context.Context, id string) (template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]

	if !ok {
		return template.Template{}, template.ErrNotFound
	}

	delete(r.items, id)
	delete(r.order, id)

	return t, nil
}

func (r *TemplatesRepo) Latest(ctx context.Context, name *string) (template.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best template.Template
	found := false

	for _, t := range r.items {
		if name != nil {
			if t.Name != *name {
				continue
			}
			if !found || t.Version > best.Version {
				best = t
				found = true
			}
			continue
		}

		if !found || r.order[t.ID] > r.order[best.ID] {
			best = t
			found = true
		}
	}

	if !found {
		return template.Template{}, template.ErrNotFound
	}

	return best, nil
}
