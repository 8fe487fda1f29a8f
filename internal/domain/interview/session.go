package interview

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionScheduled SessionStatus = "SCHEDULED"
	SessionActive    SessionStatus = "ACTIVE"
	SessionEnded     SessionStatus = "ENDED"
	SessionCanceled  SessionStatus = "CANCELED"
)

// Closed reports whether the session can no longer be joined.
func (s SessionStatus) Closed() bool {
	return s == SessionEnded || s == SessionCanceled
}

type ParticipantRole string

const (
	RoleCandidate   ParticipantRole = "CANDIDATE"
	RoleInterviewer ParticipantRole = "INTERVIEWER"
)

const RoomProviderLiveKit = "livekit"

type Session struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedBy    uuid.UUID      `gorm:"type:uuid;column:created_by;not null;index" json:"createdBy"`
	Status       SessionStatus  `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	StartsAt     *time.Time     `gorm:"column:starts_at" json:"startsAt,omitempty"`
	EndsAt       *time.Time     `gorm:"column:ends_at" json:"endsAt,omitempty"`
	RoomProvider string         `gorm:"column:room_provider;type:varchar(50)" json:"roomProvider,omitempty"`
	RoomID       string         `gorm:"column:room_id;type:varchar(255);index" json:"roomId,omitempty"`
	RecordingID  string         `gorm:"column:recording_id;type:varchar(255)" json:"recordingId,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;index" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updatedAt"`
	Participants []*Participant `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"participants,omitempty"`
	Artifacts    []*Artifact    `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Session) TableName() string { return "session" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// HasMember reports whether userID created the session or is one of its
// loaded participants.
func (s *Session) HasMember(userID uuid.UUID) bool {
	if s == nil || userID == uuid.Nil {
		return false
	}
	if s.CreatedBy == userID {
		return true
	}
	return s.Participant(userID) != nil
}

func (s *Session) Participant(userID uuid.UUID) *Participant {
	if s == nil {
		return nil
	}
	for _, p := range s.Participants {
		if p != nil && p.UserID == userID {
			return p
		}
	}
	return nil
}

type Participant struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID     uuid.UUID       `gorm:"type:uuid;column:session_id;not null;uniqueIndex:idx_participant_session_user" json:"sessionId"`
	UserID        uuid.UUID       `gorm:"type:uuid;column:user_id;not null;uniqueIndex:idx_participant_session_user;index" json:"userId"`
	RoleInSession ParticipantRole `gorm:"column:role_in_session;type:varchar(20);not null" json:"roleInSession"`
	JoinedAt      *time.Time      `gorm:"column:joined_at" json:"joinedAt,omitempty"`
	LeftAt        *time.Time      `gorm:"column:left_at" json:"leftAt,omitempty"`
}

func (Participant) TableName() string { return "session_participant" }

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
