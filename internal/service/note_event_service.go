package service

import (
	"context"
	"fmt"

	"buddyboard-be/internal/pkg/logger"
	"buddyboard-be/internal/repository/memory"
	"buddyboard-be/pkg/events"
	pktNats "buddyboard-be/pkg/nats"

	"github.com/google/uuid"
)

// EventSubscriber is satisfied by the NATS subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler pktNats.EventHandler) error
}

// cacheEvents are the note events that make a cached copy stale.
var cacheEvents = []string{
	events.NoteShapesUpdated,
	events.NoteCollaboratorsUpdated,
	events.NoteDeleted,
}

// NoteEventService keeps this instance's document cache in step with writes
// made on other instances.
type NoteEventService struct {
	subscriber EventSubscriber
	cache      *memory.DocumentCache
	instanceID string
	logger     logger.ILogger
}

func NewNoteEventService(sub EventSubscriber, cache *memory.DocumentCache, instanceID string, log logger.ILogger) *NoteEventService {
	return &NoteEventService{
		subscriber: sub,
		cache:      cache,
		instanceID: instanceID,
		logger:     log,
	}
}

// Start subscribes to note writes, sharing changes and deletions. Each instance uses its own
// durable so every instance sees every event.
func (s *NoteEventService) Start(ctx context.Context) error {
	for _, eventType := range cacheEvents {
		durable := fmt.Sprintf("note-cache-%s-%s", s.instanceID, eventType)
		if err := s.subscriber.Subscribe(ctx, eventType, durable, s.HandleEvent); err != nil {
			s.logger.Error("NoteEventService", "Failed to start note event subscriber", map[string]interface{}{
				"event": eventType,
				"error": err.Error(),
			})
			return err
		}
	}
	s.logger.Info("NoteEventService", "Listening for note events", map[string]interface{}{"instance_id": s.instanceID})
	return nil
}

// HandleEvent evicts the note an event names. Events this instance
// published are skipped since its cache already holds the write.
func (s *NoteEventService) HandleEvent(_ context.Context, event events.Event) error {
	payload := event.Payload()
	if origin, _ := payload["origin"].(string); origin != "" && origin == s.instanceID {
		return nil
	}

	raw, _ := payload["note_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		// Nothing to evict and nothing a redelivery would fix.
		s.logger.Warn("NoteEventService", "Event without a valid note id", map[string]interface{}{
			"type":    event.EventType(),
			"note_id": raw,
		})
		return nil
	}

	s.cache.Delete(id)
	s.logger.Debug("NoteEventService", "Evicted cached note", map[string]interface{}{
		"type":    event.EventType(),
		"note_id": id.String(),
	})
	return nil
}
