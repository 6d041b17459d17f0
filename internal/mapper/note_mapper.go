package mapper

import (
	"encoding/json"
	"fmt"
	"time"

	"buddyboard-be/internal/entity"
	"buddyboard-be/internal/model"
	"buddyboard-be/pkg/shape"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NoteMapper struct{}

func NewNoteMapper() *NoteMapper {
	return &NoteMapper{}
}

func (m *NoteMapper) ToEntity(n *model.Note) (*entity.Note, error) {
	if n == nil {
		return nil, nil
	}

	shapes := shape.List{}
	if len(n.Shapes) > 0 {
		if err := json.Unmarshal(n.Shapes, &shapes); err != nil {
			return nil, fmt.Errorf("note %s shapes: %w", n.Id, err)
		}
	}

	collaborators := make([]uuid.UUID, 0, len(n.Collaborators))
	for _, raw := range n.Collaborators {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("note %s collaborator %q: %w", n.Id, raw, err)
		}
		collaborators = append(collaborators, id)
	}

	var deletedAt *time.Time
	if n.DeletedAt.Valid {
		t := n.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !n.UpdatedAt.IsZero() {
		t := n.UpdatedAt
		updatedAt = &t
	}

	return &entity.Note{
		Id:              n.Id,
		Title:           n.Title,
		Kind:            n.Kind,
		OwnerId:         n.OwnerId,
		Collaborators:   collaborators,
		Shapes:          shapes,
		BackgroundColor: n.BackgroundColor,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
		IsDeleted:       n.DeletedAt.Valid,
	}, nil
}

func (m *NoteMapper) ToModel(n *entity.Note) (*model.Note, error) {
	if n == nil {
		return nil, nil
	}

	shapes, err := m.ShapesToJSON(n.Shapes)
	if err != nil {
		return nil, fmt.Errorf("note %s shapes: %w", n.Id, err)
	}

	var deletedAt gorm.DeletedAt
	if n.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *n.DeletedAt, Valid: true}
	} else if n.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if n.UpdatedAt != nil {
		updatedAt = *n.UpdatedAt
	}

	return &model.Note{
		Id:              n.Id,
		Title:           n.Title,
		Kind:            n.Kind,
		OwnerId:         n.OwnerId,
		Collaborators:   m.CollaboratorsToJSON(n.Collaborators),
		Shapes:          shapes,
		BackgroundColor: n.BackgroundColor,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
	}, nil
}

// ShapesToJSON encodes a shape list for the jsonb column. A nil list is
// stored as [].
func (m *NoteMapper) ShapesToJSON(shapes shape.List) (datatypes.JSON, error) {
	if shapes == nil {
		shapes = shape.List{}
	}
	data, err := json.Marshal(shapes)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func (m *NoteMapper) CollaboratorsToJSON(ids []uuid.UUID) datatypes.JSONSlice[string] {
	out := make(datatypes.JSONSlice[string], 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func (m *NoteMapper) ToEntities(notes []*model.Note) ([]*entity.Note, error) {
	entities := make([]*entity.Note, len(notes))
	for i, n := range notes {
		e, err := m.ToEntity(n)
		if err != nil {
			return nil, err
		}
		entities[i] = e
	}
	return entities, nil
}
