package domain

import "github.com/yungbote/mockly-backend/internal/domain/interview"

type (
	Session          = interview.Session
	SessionStatus    = interview.SessionStatus
	Participant      = interview.Participant
	ParticipantRole  = interview.ParticipantRole
	Artifact         = interview.Artifact
	ArtifactType     = interview.ArtifactType
	Report           = interview.Report
	ReportStatus     = interview.ReportStatus
	Transcript       = interview.Transcript
	TranscriptSource = interview.TranscriptSource
)

const (
	SessionScheduled = interview.SessionScheduled
	SessionActive    = interview.SessionActive
	SessionEnded     = interview.SessionEnded
	SessionCanceled  = interview.SessionCanceled

	RoleCandidate   = interview.RoleCandidate
	RoleInterviewer = interview.RoleInterviewer

	ArtifactAudioMixed = interview.ArtifactAudioMixed
	ArtifactAudioLeft  = interview.ArtifactAudioLeft
	ArtifactAudioRight = interview.ArtifactAudioRight
	ArtifactRawWebRTC  = interview.ArtifactRawWebRTC

	ReportPending    = interview.ReportPending
	ReportProcessing = interview.ReportProcessing
	ReportReady      = interview.ReportReady
	ReportFailed     = interview.ReportFailed

	TranscriptCandidate   = interview.TranscriptCandidate
	TranscriptInterviewer = interview.TranscriptInterviewer
	TranscriptMixed       = interview.TranscriptMixed

	RoomProviderLiveKit = interview.RoomProviderLiveKit
)

var SelectSourceArtifact = interview.SelectSourceArtifact

// Models lists every persisted type in migration order.
func Models() []interface{} {
	return []interface{}{
		&Session{},
		&Participant{},
		&Artifact{},
		&Report{},
		&Transcript{},
	}
}
