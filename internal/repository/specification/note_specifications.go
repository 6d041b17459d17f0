package specification

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NoteOwnedBy struct {
	UserID uuid.UUID
}

func (s NoteOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("notes.owner_id = ?", s.UserID)
}

// NoteSharedWith matches notes listing UserID among their collaborators.
type NoteSharedWith struct {
	UserID uuid.UUID
}

func (s NoteSharedWith) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("notes.collaborators @> ?::jsonb", fmt.Sprintf(`[%q]`, s.UserID.String()))
}
