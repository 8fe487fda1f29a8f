package realtime

import "github.com/google/uuid"

type EventType string

const (
	EventSessionCreated    EventType = "SESSION_CREATED"
	EventSessionUpdated    EventType = "SESSION_UPDATED"
	EventSessionEnded      EventType = "SESSION_ENDED"
	EventParticipantJoined EventType = "PARTICIPANT_JOINED"
	EventParticipantLeft   EventType = "PARTICIPANT_LEFT"
	EventArtifactUploaded  EventType = "ARTIFACT_UPLOADED"
	EventTranscriptAdded   EventType = "TRANSCRIPT_ADDED"
	EventReportReady       EventType = "REPORT_READY"
	EventReportFailed      EventType = "REPORT_FAILED"
)

// SSEMessage is what travels through the hub and the bus. Data is the
// event payload written as the SSE data line.
type SSEMessage struct {
	Channel string    `json:"channel"`
	Event   EventType `json:"event"`
	Data    any       `json:"data,omitempty"`
}

// SessionChannel is the broadcast channel for one session.
func SessionChannel(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}
