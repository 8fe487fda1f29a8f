package interview

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TranscriptSource string

const (
	TranscriptCandidate   TranscriptSource = "CANDIDATE"
	TranscriptInterviewer TranscriptSource = "INTERVIEWER"
	TranscriptMixed       TranscriptSource = "MIXED"
)

// Transcript rows are append-only.
type Transcript struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID        `gorm:"type:uuid;column:session_id;not null;index" json:"sessionId"`
	Source    TranscriptSource `gorm:"column:source;type:varchar(20);not null" json:"source"`
	Text      datatypes.JSON   `gorm:"column:text" json:"text"`
	Words     datatypes.JSON   `gorm:"column:words" json:"words,omitempty"`
	CreatedAt time.Time        `gorm:"not null;index" json:"createdAt"`
}

func (Transcript) TableName() string { return "transcript" }

func (t *Transcript) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
