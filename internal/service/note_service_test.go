package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"buddyboard-be/internal/dto"
	"buddyboard-be/internal/entity"
	"buddyboard-be/internal/pkg/logger"
	"buddyboard-be/internal/repository/contract"
	"buddyboard-be/internal/repository/memory"
	"buddyboard-be/internal/repository/specification"
	"buddyboard-be/internal/repository/unitofwork"
	"buddyboard-be/pkg/events"
	pktNats "buddyboard-be/pkg/nats"
	"buddyboard-be/pkg/shape"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNoteRepo struct {
	mu     sync.Mutex
	notes  map[uuid.UUID]*entity.Note
	writes int
	finds  int
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{notes: make(map[uuid.UUID]*entity.Note)}
}

func (r *fakeNoteRepo) Create(_ context.Context, note *entity.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *note
	r.notes[note.Id] = &c
	return nil
}

func (r *fakeNoteRepo) UpdateContent(_ context.Context, id uuid.UUID, content contract.NoteContent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[id]
	if !ok {
		return contract.ErrNotFound
	}
	r.writes++
	if content.Title != nil {
		n.Title = *content.Title
	}
	if content.BackgroundColor != nil {
		n.BackgroundColor = *content.BackgroundColor
	}
	if content.Shapes != nil {
		n.Shapes = *content.Shapes
	}
	if content.Collaborators != nil {
		n.Collaborators = slices.Clone(*content.Collaborators)
	}
	return nil
}

func (r *fakeNoteRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[id]; !ok {
		return contract.ErrNotFound
	}
	delete(r.notes, id)
	return nil
}

func (r *fakeNoteRepo) match(n *entity.Note, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByID:
			if n.Id != s.ID {
				return false
			}
		case specification.NoteOwnedBy:
			if n.OwnerId != s.UserID {
				return false
			}
		case specification.NoteSharedWith:
			if !slices.Contains(n.Collaborators, s.UserID) {
				return false
			}
		}
	}
	return true
}

func (r *fakeNoteRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Note, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r *fakeNoteRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	var out []*entity.Note
	for _, n := range r.notes {
		if r.match(n, specs) {
			c := *n
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeUnitOfWork struct{ repo *fakeNoteRepo }

func (u fakeUnitOfWork) NoteRepository() contract.NoteRepository { return u.repo }

func (u fakeUnitOfWork) Do(_ context.Context, fn func(tx unitofwork.UnitOfWork) error) error {
	return fn(u)
}

type fakeFactory struct{ repo *fakeNoteRepo }

func (f fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork {
	return fakeUnitOfWork{f.repo}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fixture struct {
	svc   INoteService
	repo  *fakeNoteRepo
	cache *memory.DocumentCache
	pub   *fakePublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := newFakeNoteRepo()
	cache := memory.NewDocumentCache(time.Minute)
	pub := &fakePublisher{}
	svc := NewNoteService(fakeFactory{repo}, cache, pub, "instance-a", logger.NewNopLogger())
	return fixture{svc: svc, repo: repo, cache: cache, pub: pub}
}

func (f fixture) create(t *testing.T, owner uuid.UUID) *dto.ShowNoteResponse {
	t.Helper()
	res, err := f.svc.Create(context.Background(), owner, &dto.CreateNoteRequest{Kind: entity.NoteKindCollaborative})
	require.NoError(t, err)
	return res
}

func strPtr(s string) *string { return &s }

func TestCreateAppliesDefaults(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	res, err := f.svc.Create(context.Background(), owner, &dto.CreateNoteRequest{})
	require.NoError(t, err)

	assert.Equal(t, entity.DefaultNoteTitle, res.Title)
	assert.Equal(t, entity.NoteKindPersonal, res.Kind)
	assert.Equal(t, entity.DefaultBackgroundColor, res.BackgroundColor)
	assert.Equal(t, owner, res.OwnerId)
	assert.Empty(t, res.Shapes)
	assert.NotNil(t, res.Shapes)
	assert.NotNil(t, res.Collaborators)
	assert.Equal(t, 1, f.cache.Len())
}

func TestShowAccess(t *testing.T) {
	f := newFixture(t)
	owner, collaborator, stranger := uuid.New(), uuid.New(), uuid.New()
	note := f.create(t, owner)
	_, err := f.svc.AddCollaborator(context.Background(), owner, &dto.CollaboratorRequest{Id: note.Id, UserId: collaborator})
	require.NoError(t, err)

	tests := []struct {
		name    string
		user    uuid.UUID
		id      uuid.UUID
		wantErr error
	}{
		{name: "owner", user: owner, id: note.Id},
		{name: "collaborator", user: collaborator, id: note.Id},
		{name: "stranger", user: stranger, id: note.Id, wantErr: ErrForbidden},
		{name: "missing", user: owner, id: uuid.New(), wantErr: ErrNoteNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Show(context.Background(), tt.user, tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, note.Id, res.Id)
		})
	}
}

func TestShowFallsBackToRepository(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	note := f.create(t, owner)
	f.cache.Delete(note.Id)

	_, err := f.svc.Show(context.Background(), owner, note.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.finds)

	_, err = f.svc.Show(context.Background(), owner, note.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, f.repo.finds, "second read is served from the cache")
}

func TestUpdateOverwritesShapes(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	note := f.create(t, owner)

	raw := json.RawMessage(`[{"id":"r1","type":"rect","x":1,"y":2,"width":3,"height":4,"stroke":"#000000","strokeWidth":2}]`)
	res, err := f.svc.Update(context.Background(), owner, &dto.UpdateNoteRequest{Id: note.Id, Shapes: raw})
	require.NoError(t, err)

	require.Len(t, res.Shapes, 1)
	assert.Equal(t, "r1", shape.ID(res.Shapes[0]))
	assert.Equal(t, entity.DefaultNoteTitle, res.Title, "absent fields are untouched")
	assert.NotNil(t, res.UpdatedAt)

	stored := f.repo.notes[note.Id]
	assert.Len(t, stored.Shapes, 1)

	require.Len(t, f.pub.events, 1)
	evt := f.pub.events[0]
	assert.Equal(t, events.NoteShapesUpdated, evt.EventType())
	assert.Equal(t, "instance-a", evt.Payload()["origin"])
	assert.Equal(t, 1, evt.Payload()["shape_count"])

	// Replacing with an empty list clears the board.
	res, err = f.svc.Update(context.Background(), owner, &dto.UpdateNoteRequest{Id: note.Id, Shapes: json.RawMessage(`[]`)})
	require.NoError(t, err)
	assert.Empty(t, res.Shapes)
}

func TestUpdateLastWriteWins(t *testing.T) {
	f := newFixture(t)
	owner, peer := uuid.New(), uuid.New()
	note := f.create(t, owner)
	_, err := f.svc.AddCollaborator(context.Background(), owner, &dto.CollaboratorRequest{Id: note.Id, UserId: peer})
	require.NoError(t, err)

	first := json.RawMessage(`[{"id":"a","type":"circle","x":0,"y":0,"radius":5}]`)
	second := json.RawMessage(`[{"id":"b","type":"circle","x":9,"y":9,"radius":5}]`)
	_, err = f.svc.Update(context.Background(), owner, &dto.UpdateNoteRequest{Id: note.Id, Shapes: first})
	require.NoError(t, err)
	_, err = f.svc.Update(context.Background(), peer, &dto.UpdateNoteRequest{Id: note.Id, Shapes: second})
	require.NoError(t, err)

	res, err := f.svc.Show(context.Background(), owner, note.Id)
	require.NoError(t, err)
	require.Len(t, res.Shapes, 1)
	assert.Equal(t, "b", shape.ID(res.Shapes[0]))
}

func TestUpdateRejectsInvalidShapes(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	note := f.create(t, owner)

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `[{`},
		{"not a list", `{"id":"a"}`},
		{"unknown type", `[{"id":"a","type":"hexagon"}]`},
		{"missing id", `[{"type":"circle","x":0,"y":0,"radius":1}]`},
		{"duplicate ids", `[{"id":"a","type":"circle","x":0,"y":0,"radius":1},{"id":"a","type":"circle","x":0,"y":0,"radius":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(context.Background(), owner, &dto.UpdateNoteRequest{Id: note.Id, Shapes: json.RawMessage(tt.raw)})
			assert.ErrorIs(t, err, shape.ErrInvalidShape)
		})
	}
	assert.Zero(t, f.repo.writes)
	assert.Empty(t, f.pub.events)
}

func TestUpdateMetadataOnly(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	note := f.create(t, owner)

	res, err := f.svc.Update(context.Background(), owner, &dto.UpdateNoteRequest{
		Id:              note.Id,
		Title:           strPtr("Retro"),
		BackgroundColor: strPtr("#000000"),
		Shapes:          json.RawMessage(`null`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Retro", res.Title)
	assert.Equal(t, "#000000", res.BackgroundColor)
	assert.Empty(t, res.Shapes)
}

func TestUpdatePublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("bus down")
	owner := uuid.New()
	note := f.create(t, owner)

	_, err := f.svc.Update(context.Background(), owner, &dto.UpdateNoteRequest{Id: note.Id, Title: strPtr("x")})
	assert.NoError(t, err)
}

func TestUpdateDeletedElsewhere(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	note := f.create(t, owner)
	delete(f.repo.notes, note.Id)

	_, err := f.svc.Update(context.Background(), owner, &dto.UpdateNoteRequest{Id: note.Id, Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrNoteNotFound)
	_, cached := f.cache.Get(note.Id)
	assert.False(t, cached)
}

func TestCollaborators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, peer := uuid.New(), uuid.New()
	note := f.create(t, owner)

	_, err := f.svc.AddCollaborator(ctx, owner, &dto.CollaboratorRequest{Id: note.Id, UserId: owner})
	assert.ErrorIs(t, err, ErrInvalidCollaborator)

	_, err = f.svc.AddCollaborator(ctx, peer, &dto.CollaboratorRequest{Id: note.Id, UserId: peer})
	assert.ErrorIs(t, err, ErrForbidden)

	res, err := f.svc.AddCollaborator(ctx, owner, &dto.CollaboratorRequest{Id: note.Id, UserId: peer})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{peer}, res.Collaborators)

	res, err = f.svc.AddCollaborator(ctx, owner, &dto.CollaboratorRequest{Id: note.Id, UserId: peer})
	require.NoError(t, err)
	assert.Len(t, res.Collaborators, 1, "adding twice is a no-op")

	_, err = f.svc.RemoveCollaborator(ctx, peer, &dto.CollaboratorRequest{Id: note.Id, UserId: peer})
	assert.ErrorIs(t, err, ErrNotOwner)

	list, err := f.svc.List(ctx, peer)
	require.NoError(t, err)
	assert.Empty(t, list.Owned)
	require.Len(t, list.Shared, 1)
	assert.Equal(t, note.Id, list.Shared[0].Id)

	res, err = f.svc.RemoveCollaborator(ctx, owner, &dto.CollaboratorRequest{Id: note.Id, UserId: peer})
	require.NoError(t, err)
	assert.Empty(t, res.Collaborators)

	_, err = f.svc.RemoveCollaborator(ctx, owner, &dto.CollaboratorRequest{Id: note.Id, UserId: peer})
	assert.ErrorIs(t, err, ErrCollaboratorNotFound)

	_, err = f.svc.Show(ctx, peer, note.Id)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, peer := uuid.New(), uuid.New()
	note := f.create(t, owner)
	_, err := f.svc.AddCollaborator(ctx, owner, &dto.CollaboratorRequest{Id: note.Id, UserId: peer})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, peer, note.Id), ErrNotOwner)
	require.NoError(t, f.svc.Delete(ctx, owner, note.Id))

	assert.Empty(t, f.repo.notes)
	assert.Zero(t, f.cache.Len())
	assert.ErrorIs(t, f.svc.Delete(ctx, owner, note.Id), ErrNoteNotFound)

	require.NotEmpty(t, f.pub.events)
	assert.Equal(t, events.NoteDeleted, f.pub.events[len(f.pub.events)-1].EventType())
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	note := f.create(t, owner)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(context.Background(), owner, note.Id, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	assert.ErrorIs(t, f.svc.Export(context.Background(), uuid.New(), note.Id, &buf), ErrForbidden)
}

type fakeSubscriber struct {
	subscribed []string
	err        error
}

func (s *fakeSubscriber) Subscribe(_ context.Context, eventType, _ string, _ pktNats.EventHandler) error {
	s.subscribed = append(s.subscribed, eventType)
	return s.err
}

func TestNoteEventServiceEvictsForeignWrites(t *testing.T) {
	cache := memory.NewDocumentCache(time.Minute)
	sub := &fakeSubscriber{}
	svc := NewNoteEventService(sub, cache, "instance-a", logger.NewNopLogger())
	require.NoError(t, svc.Start(context.Background()))
	assert.Equal(t, []string{events.NoteShapesUpdated, events.NoteCollaboratorsUpdated, events.NoteDeleted}, sub.subscribed)

	id := uuid.New()
	cache.Save(&entity.Note{Id: id})

	own := events.NewNoteShapesUpdated(id.String(), "u", "instance-a", 0, time.Now())
	require.NoError(t, svc.HandleEvent(context.Background(), own))
	_, ok := cache.Get(id)
	assert.True(t, ok, "own writes keep the entry")

	foreign := events.NewNoteShapesUpdated(id.String(), "u", "instance-b", 0, time.Now())
	require.NoError(t, svc.HandleEvent(context.Background(), foreign))
	_, ok = cache.Get(id)
	assert.False(t, ok)

	bad := events.BaseEvent{Type: events.NoteDeleted, Data: map[string]interface{}{"note_id": "nope"}}
	assert.NoError(t, svc.HandleEvent(context.Background(), bad))
}

func TestNoteEventServiceStartFailure(t *testing.T) {
	sub := &fakeSubscriber{err: errors.New("no stream")}
	svc := NewNoteEventService(sub, memory.NewDocumentCache(time.Minute), "i", logger.NewNopLogger())
	assert.Error(t, svc.Start(context.Background()))
}

func TestCollaboratorEditOnDeletedNote(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	note := f.create(t, owner)
	delete(f.repo.notes, note.Id)

	_, err := f.svc.AddCollaborator(context.Background(), owner, &dto.CollaboratorRequest{Id: note.Id, UserId: uuid.New()})
	assert.ErrorIs(t, err, ErrNoteNotFound)
	_, cached := f.cache.Get(note.Id)
	assert.False(t, cached)
}

func TestRemovedCollaboratorLosesAccessOnOtherInstances(t *testing.T) {
	ctx := context.Background()
	repo := newFakeNoteRepo()
	owner, peer := uuid.New(), uuid.New()

	cacheA, cacheB := memory.NewDocumentCache(time.Minute), memory.NewDocumentCache(time.Minute)
	pubA := &fakePublisher{}
	svcA := NewNoteService(fakeFactory{repo}, cacheA, pubA, "instance-a", logger.NewNopLogger())
	svcB := NewNoteService(fakeFactory{repo}, cacheB, &fakePublisher{}, "instance-b", logger.NewNopLogger())
	eventsB := NewNoteEventService(&fakeSubscriber{}, cacheB, "instance-b", logger.NewNopLogger())

	note, err := svcA.Create(ctx, owner, &dto.CreateNoteRequest{Kind: entity.NoteKindCollaborative})
	require.NoError(t, err)
	_, err = svcA.AddCollaborator(ctx, owner, &dto.CollaboratorRequest{Id: note.Id, UserId: peer})
	require.NoError(t, err)

	// Instance B caches the note while peer still has access.
	_, err = svcB.Show(ctx, peer, note.Id)
	require.NoError(t, err)

	before := len(pubA.events)
	_, err = svcA.RemoveCollaborator(ctx, owner, &dto.CollaboratorRequest{Id: note.Id, UserId: peer})
	require.NoError(t, err)
	require.Len(t, pubA.events, before+1)
	evt := pubA.events[before]
	assert.Equal(t, events.NoteCollaboratorsUpdated, evt.EventType())
	assert.Equal(t, "instance-a", evt.Payload()["origin"])

	require.NoError(t, eventsB.HandleEvent(ctx, evt))

	_, err = svcB.Show(ctx, peer, note.Id)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svcB.Update(ctx, peer, &dto.UpdateNoteRequest{Id: note.Id, Title: strPtr("hijacked")})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUnchangedCollaboratorsPublishNothing(t *testing.T) {
	f := newFixture(t)
	owner, peer := uuid.New(), uuid.New()
	note := f.create(t, owner)

	_, err := f.svc.AddCollaborator(context.Background(), owner, &dto.CollaboratorRequest{Id: note.Id, UserId: peer})
	require.NoError(t, err)
	require.Len(t, f.pub.events, 1)

	_, err = f.svc.AddCollaborator(context.Background(), owner, &dto.CollaboratorRequest{Id: note.Id, UserId: peer})
	require.NoError(t, err)
	assert.Len(t, f.pub.events, 1, "re-adding an existing collaborator changes nothing")
}
