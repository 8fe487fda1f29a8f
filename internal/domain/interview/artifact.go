package interview

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ArtifactType string

const (
	ArtifactAudioMixed ArtifactType = "AUDIO_MIXED"
	ArtifactAudioLeft  ArtifactType = "AUDIO_LEFT"
	ArtifactAudioRight ArtifactType = "AUDIO_RIGHT"
	ArtifactRawWebRTC  ArtifactType = "RAW_WEBRTC"
)

func (t ArtifactType) Valid() bool {
	switch t {
	case ArtifactAudioMixed, ArtifactAudioLeft, ArtifactAudioRight, ArtifactRawWebRTC:
		return true
	default:
		return false
	}
}

// IsChannelAudio is true for the single-speaker tracks used when no mixed
// recording exists.
func (t ArtifactType) IsChannelAudio() bool {
	return t == ArtifactAudioLeft || t == ArtifactAudioRight
}

type Artifact struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID   uuid.UUID    `gorm:"type:uuid;column:session_id;not null;index" json:"sessionId"`
	Type        ArtifactType `gorm:"column:type;type:varchar(20);not null" json:"type"`
	StorageURL  string       `gorm:"column:storage_url;type:text;not null" json:"storageUrl"`
	SizeBytes   int64        `gorm:"column:size_bytes" json:"sizeBytes"`
	DurationSec *int         `gorm:"column:duration_sec" json:"durationSec,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;index" json:"createdAt"`
}

func (Artifact) TableName() string { return "artifact" }

func (a *Artifact) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// SelectSourceArtifact picks the audio the report is generated from: the
// first AUDIO_MIXED, else the first AUDIO_LEFT/AUDIO_RIGHT in store order.
func SelectSourceArtifact(artifacts []*Artifact) *Artifact {
	var fallback *Artifact
	for _, a := range artifacts {
		if a == nil {
			continue
		}
		if a.Type == ArtifactAudioMixed {
			return a
		}
		if fallback == nil && a.Type.IsChannelAudio() {
			fallback = a
		}
	}
	return fallback
}
