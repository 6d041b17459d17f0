package entity

import (
	"slices"
	"time"

	"buddyboard-be/pkg/shape"

	"github.com/google/uuid"
)

const (
	NoteKindPersonal      = "personal"
	NoteKindCollaborative = "collaborative"

	DefaultNoteTitle       = "Untitled Note"
	DefaultBackgroundColor = "#FFFFFF"
)

// Note is a board document. Shapes is always read and written whole.
type Note struct {
	Id              uuid.UUID
	Title           string
	Kind            string
	OwnerId         uuid.UUID
	Collaborators   []uuid.UUID
	Shapes          shape.List
	BackgroundColor string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
	DeletedAt       *time.Time
	IsDeleted       bool
}

func (n *Note) IsOwner(userId uuid.UUID) bool {
	return n.OwnerId == userId
}

// CanAccess reports whether userId may read and write the document.
func (n *Note) CanAccess(userId uuid.UUID) bool {
	return n.IsOwner(userId) || slices.Contains(n.Collaborators, userId)
}
