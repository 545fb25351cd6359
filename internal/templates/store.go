package templates

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/geocoder89/certhub/internal/cache"
	"github.com/geocoder89/certhub/internal/domain/template"
	"github.com/geocoder89/certhub/internal/storage"
	"github.com/geocoder89/certhub/internal/utils"
)

// Repo is the catalog persistence the store sits on (postgres in prod,
// the memory mirror in tests).
type Repo interface {
	Create(ctx context.Context, req template.CreateRequest) (template.Template, error)
	GetByID(ctx context.Context, id string) (template.Template, error)
	List(ctx context.Context) ([]template.Template, error)
	Delete(ctx context.Context, id string) (template.Template, error)
	Latest(ctx context.Context, name *string) (template.Template, error)
}

// Store owns the template lifecycle: catalog rows plus the backing files
// under the upload root, with a short TTL cache on the latest-lookup.
type Store struct {
	repo  Repo
	root  storage.Root
	cache *cache.Cache
	log   *slog.Logger
}

func New(repo Repo, root storage.Root, c *cache.Cache, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}

	return &Store{
		repo:  repo,
		root:  root,
		cache: c,
		log:   log,
	}
}

func (s *Store) Create(ctx context.Context, req template.CreateRequest) (template.Template, error) {
	if !req.ContentType.IsValid() {
		return template.Template{}, template.ErrInvalidContentType
	}

	t, err := s.repo.Create(ctx, req)

	if err != nil {
		return template.Template{}, err
	}

	s.invalidateLatest(t.Name)

	return t, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (template.Template, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Store) List(ctx context.Context) ([]template.Template, error) {
	return s.repo.List(ctx)
}

// Delete removes the catalog row first, then attempts the file. A failed
// unlink is logged and swallowed: catalog consistency wins over
// filesystem cleanup.
func (s *Store) Delete(ctx context.Context, id string) (template.Template, error) {
	t, err := s.repo.Delete(ctx, id)

	if err != nil {
		return template.Template{}, err
	}

	s.invalidateLatest(t.Name)

	rmErr := os.Remove(s.root.Abs(t.FilePath))

	if rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		s.log.WarnContext(ctx, "template.file_cleanup_failed",
			"template_id", t.ID,
			"file_path", t.FilePath,
			"err", rmErr,
		)
	}

	return t, nil
}

// Latest resolves the newest template (max version for a name, newest
// overall without one). template.ErrNotFound means "no templates exist":
// callers render the fallback.
func (s *Store) Latest(ctx context.Context, name *string) (template.Template, error) {
	key := utils.BuildLatestTemplateCacheKey(name)

	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if t, ok := v.(template.Template); ok {
				return t, nil
			}
		}
	}

	t, err := s.repo.Latest(ctx, name)

	if err != nil {
		return template.Template{}, err
	}

	if s.cache != nil {
		s.cache.Set(key, t)
	}

	return t, nil
}

func (s *Store) invalidateLatest(name string) {
	if s.cache == nil {
		return
	}

	s.cache.Delete(utils.BuildLatestTemplateCacheKey(&name))
	s.cache.Delete(utils.BuildLatestTemplateCacheKey(nil))
}
