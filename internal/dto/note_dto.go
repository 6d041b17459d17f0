package dto

import (
	"encoding/json"
	"time"

	"buddyboard-be/pkg/shape"

	"github.com/google/uuid"
)

type CreateNoteRequest struct {
	Title string `json:"title" validate:"max=255"`
	Kind  string `json:"type" validate:"omitempty,oneof=personal collaborative"`
}

type ShowNoteResponse struct {
	Id              uuid.UUID   `json:"id"`
	Title           string      `json:"title"`
	Kind            string      `json:"type"`
	OwnerId         uuid.UUID   `json:"ownerId"`
	Collaborators   []uuid.UUID `json:"collaborators"`
	Shapes          shape.List  `json:"shapes"`
	BackgroundColor string      `json:"backgroundColor"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       *time.Time  `json:"updatedAt"`
}

type NoteSummary struct {
	Id         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	Kind       string     `json:"type"`
	OwnerId    uuid.UUID  `json:"ownerId"`
	ShapeCount int        `json:"shapeCount"`
	UpdatedAt  *time.Time `json:"updatedAt"`
}

type ListNotesResponse struct {
	Owned  []NoteSummary `json:"owned"`
	Shared []NoteSummary `json:"shared"`
}

// UpdateNoteRequest overwrites only the fields that are present. Shapes
// replaces the whole list.
type UpdateNoteRequest struct {
	Id              uuid.UUID       `json:"-"`
	Title           *string         `json:"title" validate:"omitempty,max=255"`
	Shapes          json.RawMessage `json:"shapes"`
	BackgroundColor *string         `json:"backgroundColor" validate:"omitempty,hexcolor"`
}

type CollaboratorRequest struct {
	Id     uuid.UUID `json:"-"`
	UserId uuid.UUID `json:"userId" validate:"required"`
}
