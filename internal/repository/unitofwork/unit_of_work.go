package unitofwork

import (
	"context"

	"buddyboard-be/internal/repository/contract"
)

type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}

type UnitOfWork interface {
	NoteRepository() contract.NoteRepository

	// Do runs fn inside one database transaction. Repositories taken from
	// tx share it; fn's error rolls everything back.
	Do(ctx context.Context, fn func(tx UnitOfWork) error) error
}
