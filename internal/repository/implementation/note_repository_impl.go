package implementation

import (
	"context"
	"errors"

	"buddyboard-be/internal/entity"
	"buddyboard-be/internal/mapper"
	"buddyboard-be/internal/model"
	"buddyboard-be/internal/repository/contract"
	"buddyboard-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NoteRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.NoteMapper
}

func NewNoteRepository(db *gorm.DB) contract.NoteRepository {
	return &NoteRepositoryImpl{
		db:     db,
		mapper: mapper.NewNoteMapper(),
	}
}

func (r *NoteRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *NoteRepositoryImpl) Create(ctx context.Context, note *entity.Note) error {
	m, err := r.mapper.ToModel(note)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	e, err := r.mapper.ToEntity(m)
	if err != nil {
		return err
	}
	*note = *e
	return nil
}

// UpdateContent overwrites the given columns in one UPDATE statement. The
// last writer wins.
func (r *NoteRepositoryImpl) UpdateContent(ctx context.Context, id uuid.UUID, content contract.NoteContent) error {
	updates := map[string]interface{}{}
	if content.Title != nil {
		updates["title"] = *content.Title
	}
	if content.BackgroundColor != nil {
		updates["background_color"] = *content.BackgroundColor
	}
	if content.Collaborators != nil {
		updates["collaborators"] = r.mapper.CollaboratorsToJSON(*content.Collaborators)
	}
	if content.Shapes != nil {
		shapes, err := r.mapper.ShapesToJSON(*content.Shapes)
		if err != nil {
			return err
		}
		updates["shapes"] = shapes
	}
	if len(updates) == 0 {
		return nil
	}

	res := r.db.WithContext(ctx).Model(&model.Note{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrNotFound
	}
	return nil
}

func (r *NoteRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.Note{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return contract.ErrNotFound
	}
	return nil
}

func (r *NoteRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Note, error) {
	var m model.Note
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m)
}

func (r *NoteRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Note, error) {
	var models []*model.Note
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models)
}
