package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/mockly-backend/internal/data/repos/interview"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

type SessionRepo = interview.SessionRepo
type SessionListFilter = interview.SessionListFilter
type ParticipantRepo = interview.ParticipantRepo
type ArtifactRepo = interview.ArtifactRepo
type ReportRepo = interview.ReportRepo
type TranscriptRepo = interview.TranscriptRepo

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return interview.NewSessionRepo(db, baseLog)
}

func NewParticipantRepo(db *gorm.DB, baseLog *logger.Logger) ParticipantRepo {
	return interview.NewParticipantRepo(db, baseLog)
}

func NewArtifactRepo(db *gorm.DB, baseLog *logger.Logger) ArtifactRepo {
	return interview.NewArtifactRepo(db, baseLog)
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return interview.NewReportRepo(db, baseLog)
}

func NewTranscriptRepo(db *gorm.DB, baseLog *logger.Logger) TranscriptRepo {
	return interview.NewTranscriptRepo(db, baseLog)
}
