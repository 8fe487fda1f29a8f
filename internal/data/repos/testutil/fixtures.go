package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/mockly-backend/internal/domain"
)

// SeedSession inserts a SCHEDULED session owned by candidate with interviewer
// as the second participant.
func SeedSession(tb testing.TB, tx *gorm.DB, candidate, interviewer uuid.UUID) *types.Session {
	tb.Helper()
	id := uuid.New()
	s := &types.Session{
		ID:           id,
		CreatedBy:    candidate,
		Status:       types.SessionScheduled,
		RoomProvider: types.RoomProviderLiveKit,
		RoomID:       "session-" + id.String(),
		Participants: []*types.Participant{
			{SessionID: id, UserID: candidate, RoleInSession: types.RoleCandidate},
			{SessionID: id, UserID: interviewer, RoleInSession: types.RoleInterviewer},
		},
	}
	if err := tx.WithContext(context.Background()).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}

// SeedArtifact inserts an artifact; createdAt offsets keep list order stable.
func SeedArtifact(tb testing.TB, tx *gorm.DB, sessionID uuid.UUID, typ types.ArtifactType, key string, size int64, createdAt time.Time) *types.Artifact {
	tb.Helper()
	a := &types.Artifact{
		SessionID:  sessionID,
		Type:       typ,
		StorageURL: key,
		SizeBytes:  size,
		CreatedAt:  createdAt,
	}
	if err := tx.WithContext(context.Background()).Create(a).Error; err != nil {
		tb.Fatalf("seed artifact: %v", err)
	}
	return a
}

// SeedReport inserts a report in the given status.
func SeedReport(tb testing.TB, tx *gorm.DB, sessionID uuid.UUID, status types.ReportStatus, errMsg *string) *types.Report {
	tb.Helper()
	r := &types.Report{
		SessionID:    sessionID,
		Status:       status,
		ErrorMessage: errMsg,
	}
	if err := tx.WithContext(context.Background()).Create(r).Error; err != nil {
		tb.Fatalf("seed report: %v", err)
	}
	return r
}
