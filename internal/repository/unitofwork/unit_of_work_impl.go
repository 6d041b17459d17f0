package unitofwork

import (
	"context"

	"buddyboard-be/internal/repository/contract"
	"buddyboard-be/internal/repository/implementation"

	"gorm.io/gorm"
)

type RepositoryFactoryImpl struct {
	db *gorm.DB
}

func NewRepositoryFactory(db *gorm.DB) RepositoryFactory {
	return &RepositoryFactoryImpl{db: db}
}

// NewUnitOfWork is cheap; make one per request. Repositories take ctx per call.
func (f *RepositoryFactoryImpl) NewUnitOfWork(_ context.Context) UnitOfWork {
	return &UnitOfWorkImpl{db: f.db}
}

type UnitOfWorkImpl struct {
	db *gorm.DB
}

func (u *UnitOfWorkImpl) Do(ctx context.Context, fn func(tx UnitOfWork) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UnitOfWorkImpl{db: tx})
	})
}

func (u *UnitOfWorkImpl) NoteRepository() contract.NoteRepository {
	return implementation.NewNoteRepository(u.db)
}
