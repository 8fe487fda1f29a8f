package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/mockly-backend/internal/data/repos"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

type Repos struct {
	Session     repos.SessionRepo
	Participant repos.ParticipantRepo
	Artifact    repos.ArtifactRepo
	Report      repos.ReportRepo
	Transcript  repos.TranscriptRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Session:     repos.NewSessionRepo(db, log),
		Participant: repos.NewParticipantRepo(db, log),
		Artifact:    repos.NewArtifactRepo(db, log),
		Report:      repos.NewReportRepo(db, log),
		Transcript:  repos.NewTranscriptRepo(db, log),
	}
}
