package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/geocoder89/certhub/internal/domain/certificate"
)

type CertificatesRepo struct {
	mu    sync.RWMutex
	items map[string]certificate.Certificate
}

func NewCertificatesRepo() *CertificatesRepo {
	return &CertificatesRepo{
		items: make(map[string]certificate.Certificate),
	}
}

func (r *CertificatesRepo) Insert(ctx context.Context, req certificate.CreateRequest) (certificate.Certificate, error) {
	c := certificate.NewFromCreateRequest(req)

	r.mu.Lock()
	r.items[c.ID] = c
	r.mu.Unlock()

	return c, nil
}

func (r *CertificatesRepo) GetByID(ctx context.Context, id string) (certificate.Certificate, error) {
	r.mu.RLock()
	c, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return certificate.Certificate{}, certificate.ErrNotFound
	}

	return c, nil
}

func (r *CertificatesRepo) ListByUser(ctx context.Context, userID string) ([]certificate.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]certificate.Certificate, 0)

	for _, c := range r.items {
		if c.UserID == userID {
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})

	return out, nil
}

// All returns every stored row; test helper.
func (r *CertificatesRepo) All() []certificate.Certificate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]certificate.Certificate, 0, len(r.items))

	for _, c := range r.items {
		out = append(out, c)
	}

	return out
}
