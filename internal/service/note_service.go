package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"buddyboard-be/internal/dto"
	"buddyboard-be/internal/entity"
	"buddyboard-be/internal/pkg/logger"
	"buddyboard-be/internal/repository/contract"
	"buddyboard-be/internal/repository/memory"
	"buddyboard-be/internal/repository/specification"
	"buddyboard-be/internal/repository/unitofwork"
	"buddyboard-be/pkg/events"
	"buddyboard-be/pkg/export"
	"buddyboard-be/pkg/shape"

	"github.com/google/uuid"
)

var (
	ErrNoteNotFound         = errors.New("note not found")
	ErrForbidden            = errors.New("you do not have access to this note")
	ErrNotOwner             = errors.New("only the owner can do this")
	ErrInvalidCollaborator  = errors.New("the owner cannot be added as a collaborator")
	ErrCollaboratorNotFound = errors.New("user is not a collaborator")
)

// EventPublisher is satisfied by the NATS publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type INoteService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateNoteRequest) (*dto.ShowNoteResponse, error)
	List(ctx context.Context, userId uuid.UUID) (*dto.ListNotesResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ShowNoteResponse, error)
	Update(ctx context.Context, userId uuid.UUID, req *dto.UpdateNoteRequest) (*dto.ShowNoteResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
	AddCollaborator(ctx context.Context, userId uuid.UUID, req *dto.CollaboratorRequest) (*dto.ShowNoteResponse, error)
	RemoveCollaborator(ctx context.Context, userId uuid.UUID, req *dto.CollaboratorRequest) (*dto.ShowNoteResponse, error)
	Export(ctx context.Context, userId uuid.UUID, id uuid.UUID, w io.Writer) error
}

type noteService struct {
	uowFactory     unitofwork.RepositoryFactory
	cache          *memory.DocumentCache
	eventPublisher EventPublisher
	instanceID     string
	logger         logger.ILogger
}

// NewNoteService wires the note use cases. eventPublisher may be nil when no
// event bus is configured.
func NewNoteService(
	uowFactory unitofwork.RepositoryFactory,
	cache *memory.DocumentCache,
	eventPublisher EventPublisher,
	instanceID string,
	log logger.ILogger,
) INoteService {
	return &noteService{
		uowFactory:     uowFactory,
		cache:          cache,
		eventPublisher: eventPublisher,
		instanceID:     instanceID,
		logger:         log,
	}
}

func (c *noteService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateNoteRequest) (*dto.ShowNoteResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)

	note := entity.Note{
		Id:              uuid.New(),
		Title:           req.Title,
		Kind:            req.Kind,
		OwnerId:         userId,
		Collaborators:   []uuid.UUID{},
		Shapes:          shape.List{},
		BackgroundColor: entity.DefaultBackgroundColor,
		CreatedAt:       time.Now(),
	}
	if note.Title == "" {
		note.Title = entity.DefaultNoteTitle
	}
	if note.Kind == "" {
		note.Kind = entity.NoteKindPersonal
	}

	if err := uow.NoteRepository().Create(ctx, &note); err != nil {
		return nil, err
	}
	c.cache.Save(&note)

	c.logger.Info("NoteService", "Note created", map[string]interface{}{
		"note_id": note.Id.String(),
		"user_id": userId.String(),
		"type":    note.Kind,
	})

	return toShowResponse(&note), nil
}

func (c *noteService) List(ctx context.Context, userId uuid.UUID) (*dto.ListNotesResponse, error) {
	uow := c.uowFactory.NewUnitOfWork(ctx)
	newestFirst := specification.OrderBy{Field: "updated_at", Desc: true}

	owned, err := uow.NoteRepository().FindAll(ctx, specification.NoteOwnedBy{UserID: userId}, newestFirst)
	if err != nil {
		return nil, err
	}
	shared, err := uow.NoteRepository().FindAll(ctx, specification.NoteSharedWith{UserID: userId}, newestFirst)
	if err != nil {
		return nil, err
	}

	return &dto.ListNotesResponse{
		Owned:  toSummaries(owned),
		Shared: toSummaries(shared),
	}, nil
}

func (c *noteService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ShowNoteResponse, error) {
	note, err := c.authorized(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	return toShowResponse(note), nil
}

// Update overwrites whatever fields the request carries. A shape list
// replaces the stored one wholesale; concurrent writers race and the last
// statement to reach the database wins.
func (c *noteService) Update(ctx context.Context, userId uuid.UUID, req *dto.UpdateNoteRequest) (*dto.ShowNoteResponse, error) {
	note, err := c.authorized(ctx, userId, req.Id)
	if err != nil {
		return nil, err
	}

	content := contract.NoteContent{
		Title:           req.Title,
		BackgroundColor: req.BackgroundColor,
	}
	if hasShapes(req.Shapes) {
		shapes, err := decodeShapes(req.Shapes)
		if err != nil {
			return nil, err
		}
		content.Shapes = &shapes
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.NoteRepository().UpdateContent(ctx, note.Id, content); err != nil {
		if errors.Is(err, contract.ErrNotFound) {
			c.cache.Delete(note.Id)
			return nil, ErrNoteNotFound
		}
		return nil, err
	}

	now := time.Now()
	if content.Title != nil {
		note.Title = *content.Title
	}
	if content.BackgroundColor != nil {
		note.BackgroundColor = *content.BackgroundColor
	}
	if content.Shapes != nil {
		note.Shapes = *content.Shapes
	}
	note.UpdatedAt = &now
	c.cache.Save(note)

	c.publish(ctx, events.NewNoteShapesUpdated(note.Id.String(), userId.String(), c.instanceID, len(note.Shapes), now))

	return toShowResponse(note), nil
}

func (c *noteService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	note, err := c.owned(ctx, userId, id)
	if err != nil {
		return err
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	if err := uow.NoteRepository().Delete(ctx, note.Id); err != nil && !errors.Is(err, contract.ErrNotFound) {
		return err
	}
	c.cache.Delete(note.Id)

	c.logger.Info("NoteService", "Note deleted", map[string]interface{}{
		"note_id": note.Id.String(),
		"user_id": userId.String(),
	})
	c.publish(ctx, events.NewNoteDeleted(note.Id.String(), userId.String(), c.instanceID, time.Now()))
	return nil
}

func (c *noteService) AddCollaborator(ctx context.Context, userId uuid.UUID, req *dto.CollaboratorRequest) (*dto.ShowNoteResponse, error) {
	note, err := c.editCollaborators(ctx, userId, req.Id, func(note *entity.Note) ([]uuid.UUID, error) {
		if req.UserId == note.OwnerId {
			return nil, ErrInvalidCollaborator
		}
		if slices.Contains(note.Collaborators, req.UserId) {
			return note.Collaborators, nil
		}
		return append(slices.Clone(note.Collaborators), req.UserId), nil
	})
	if err != nil {
		return nil, err
	}
	return toShowResponse(note), nil
}

func (c *noteService) RemoveCollaborator(ctx context.Context, userId uuid.UUID, req *dto.CollaboratorRequest) (*dto.ShowNoteResponse, error) {
	note, err := c.editCollaborators(ctx, userId, req.Id, func(note *entity.Note) ([]uuid.UUID, error) {
		i := slices.Index(note.Collaborators, req.UserId)
		if i < 0 {
			return nil, ErrCollaboratorNotFound
		}
		return slices.Delete(slices.Clone(note.Collaborators), i, i+1), nil
	})
	if err != nil {
		return nil, err
	}
	return toShowResponse(note), nil
}

// Export renders the note's current shapes as a PDF.
func (c *noteService) Export(ctx context.Context, userId uuid.UUID, id uuid.UUID, w io.Writer) error {
	note, err := c.authorized(ctx, userId, id)
	if err != nil {
		return err
	}
	return export.WritePDF(w, export.Document{
		Title:           note.Title,
		BackgroundColor: note.BackgroundColor,
		Shapes:          note.Shapes,
	})
}

// editCollaborators reads the note under a row lock so concurrent
// membership edits apply one after the other. Only the owner may edit.
func (c *noteService) editCollaborators(ctx context.Context, userId, id uuid.UUID, edit func(*entity.Note) ([]uuid.UUID, error)) (*entity.Note, error) {
	var (
		updated *entity.Note
		changed bool
	)
	uow := c.uowFactory.NewUnitOfWork(ctx)
	err := uow.Do(ctx, func(tx unitofwork.UnitOfWork) error {
		note, err := tx.NoteRepository().FindOne(ctx, specification.ByID{ID: id}, specification.ForUpdate{})
		if err != nil {
			return err
		}
		if note == nil {
			return ErrNoteNotFound
		}
		if !note.CanAccess(userId) {
			return ErrForbidden
		}
		if !note.IsOwner(userId) {
			return ErrNotOwner
		}

		collaborators, err := edit(note)
		if err != nil {
			return err
		}
		if !slices.Equal(collaborators, note.Collaborators) {
			err := tx.NoteRepository().UpdateContent(ctx, id, contract.NoteContent{Collaborators: &collaborators})
			if err != nil {
				return err
			}
			note.Collaborators = collaborators
			changed = true
		}
		updated = note
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoteNotFound) || errors.Is(err, contract.ErrNotFound) {
			c.cache.Delete(id)
			return nil, ErrNoteNotFound
		}
		return nil, err
	}

	c.cache.Save(updated)
	if changed {
		// Other instances still hold the old sharing list.
		c.publish(ctx, events.NewNoteCollaboratorsUpdated(id.String(), userId.String(), c.instanceID, len(updated.Collaborators), time.Now()))
	}
	return updated, nil
}

// load returns the note from the cache, falling back to the database.
func (c *noteService) load(ctx context.Context, id uuid.UUID) (*entity.Note, error) {
	if note, ok := c.cache.Get(id); ok {
		return note, nil
	}

	uow := c.uowFactory.NewUnitOfWork(ctx)
	note, err := uow.NoteRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}
	c.cache.Save(note)
	return note, nil
}

func (c *noteService) authorized(ctx context.Context, userId, id uuid.UUID) (*entity.Note, error) {
	note, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !note.CanAccess(userId) {
		return nil, ErrForbidden
	}
	return note, nil
}

func (c *noteService) owned(ctx context.Context, userId, id uuid.UUID) (*entity.Note, error) {
	note, err := c.authorized(ctx, userId, id)
	if err != nil {
		return nil, err
	}
	if !note.IsOwner(userId) {
		return nil, ErrNotOwner
	}
	return note, nil
}

func (c *noteService) publish(ctx context.Context, evt events.Event) {
	if c.eventPublisher == nil {
		return
	}
	// Other instances only lose a cache eviction; the write itself stands.
	if err := c.eventPublisher.Publish(ctx, evt); err != nil {
		c.logger.Warn("NoteService", fmt.Sprintf("Failed to publish %s event", evt.EventType()), map[string]interface{}{
			"note_id": evt.Payload()["note_id"],
			"error":   err.Error(),
		})
	}
}

func hasShapes(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// decodeShapes parses a wire shape list and rejects anything a client
// could not have drawn.
func decodeShapes(raw json.RawMessage) (shape.List, error) {
	var shapes shape.List
	if err := json.Unmarshal(raw, &shapes); err != nil {
		if errors.Is(err, shape.ErrInvalidShape) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", shape.ErrInvalidShape, err)
	}
	if err := shape.ValidateList(shapes); err != nil {
		return nil, err
	}
	return shapes, nil
}

func toShowResponse(note *entity.Note) *dto.ShowNoteResponse {
	collaborators := note.Collaborators
	if collaborators == nil {
		collaborators = []uuid.UUID{}
	}
	shapes := note.Shapes
	if shapes == nil {
		shapes = shape.List{}
	}
	return &dto.ShowNoteResponse{
		Id:              note.Id,
		Title:           note.Title,
		Kind:            note.Kind,
		OwnerId:         note.OwnerId,
		Collaborators:   collaborators,
		Shapes:          shapes,
		BackgroundColor: note.BackgroundColor,
		CreatedAt:       note.CreatedAt,
		UpdatedAt:       note.UpdatedAt,
	}
}

func toSummaries(notes []*entity.Note) []dto.NoteSummary {
	out := make([]dto.NoteSummary, 0, len(notes))
	for _, n := range notes {
		out = append(out, dto.NoteSummary{
			Id:         n.Id,
			Title:      n.Title,
			Kind:       n.Kind,
			OwnerId:    n.OwnerId,
			ShapeCount: len(n.Shapes),
			UpdatedAt:  n.UpdatedAt,
		})
	}
	return out
}
