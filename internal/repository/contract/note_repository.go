package contract

import (
	"context"
	"errors"

	"buddyboard-be/internal/entity"
	"buddyboard-be/internal/repository/specification"
	"buddyboard-be/pkg/shape"

	"github.com/google/uuid"
)

// ErrNotFound is returned by writes that matched no row.
var ErrNotFound = errors.New("record not found")

// NoteContent holds the columns a document write may overwrite. Nil fields
// are left untouched.
type NoteContent struct {
	Title           *string
	Shapes          *shape.List
	BackgroundColor *string
	Collaborators   *[]uuid.UUID
}

type NoteRepository interface {
	Create(ctx context.Context, note *entity.Note) error
	UpdateContent(ctx context.Context, id uuid.UUID, content NoteContent) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Note, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Note, error)
}
