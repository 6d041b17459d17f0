package memory

import (
	"slices"
	"time"

	"buddyboard-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// DocumentCache keeps recently loaded notes in process. Entries are copies,
// so callers may modify what they get back.
type DocumentCache struct {
	cache *cache.Cache
}

func NewDocumentCache(ttl time.Duration) *DocumentCache {
	// Purge expired items at twice the TTL
	return &DocumentCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func (r *DocumentCache) Save(note *entity.Note) {
	r.cache.Set(note.Id.String(), copyNote(note), cache.DefaultExpiration)
}

func (r *DocumentCache) Get(id uuid.UUID) (*entity.Note, bool) {
	if x, found := r.cache.Get(id.String()); found {
		return copyNote(x.(*entity.Note)), true
	}
	return nil, false
}

func (r *DocumentCache) Delete(id uuid.UUID) {
	r.cache.Delete(id.String())
}

func (r *DocumentCache) Len() int {
	return r.cache.ItemCount()
}

func copyNote(n *entity.Note) *entity.Note {
	c := *n
	c.Collaborators = slices.Clone(n.Collaborators)
	c.Shapes = slices.Clone(n.Shapes)
	return &c
}
