package events

import "time"

const (
	// NoteShapesUpdated is published after a note's content was overwritten.
	NoteShapesUpdated = "NOTE_SHAPES_UPDATED"
	// NoteDeleted is published after a note was removed.
	NoteDeleted = "NOTE_DELETED"
	// NoteCollaboratorsUpdated is published after a note's sharing list changed.
	NoteCollaboratorsUpdated = "NOTE_COLLABORATORS_UPDATED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "NOTE_SHAPES_UPDATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewNoteShapesUpdated describes a whole-document overwrite by userID.
// origin names the server instance that wrote it.
func NewNoteShapesUpdated(noteID, userID, origin string, shapeCount int, at time.Time) BaseEvent {
	return BaseEvent{
		Type: NoteShapesUpdated,
		Data: map[string]interface{}{
			"note_id":     noteID,
			"user_id":     userID,
			"origin":      origin,
			"shape_count": shapeCount,
		},
		OccurredAt: at,
	}
}

func NewNoteCollaboratorsUpdated(noteID, userID, origin string, collaboratorCount int, at time.Time) BaseEvent {
	return BaseEvent{
		Type: NoteCollaboratorsUpdated,
		Data: map[string]interface{}{
			"note_id":            noteID,
			"user_id":            userID,
			"origin":             origin,
			"collaborator_count": collaboratorCount,
		},
		OccurredAt: at,
	}
}

func NewNoteDeleted(noteID, userID, origin string, at time.Time) BaseEvent {
	return BaseEvent{
		Type: NoteDeleted,
		Data: map[string]interface{}{
			"note_id": noteID,
			"user_id": userID,
			"origin":  origin,
		},
		OccurredAt: at,
	}
}
