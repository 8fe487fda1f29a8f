package interview

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mockly-backend/internal/data/repos/testutil"
	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/platform/dbctx"
)

func TestSessionRepoMembershipQueries(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	sessions := NewSessionRepo(db, log)
	dbc := dbctx.Context{Ctx: context.Background()}

	candidate, interviewer := uuid.New(), uuid.New()
	seeded := testutil.SeedSession(t, db, candidate, interviewer)

	got, err := sessions.GetByID(dbc, seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Participants, 2)
	assert.Equal(t, types.RoleCandidate, got.Participants[0].RoleInSession)
	assert.True(t, got.HasMember(interviewer))

	active, err := sessions.FindActiveForUser(dbc, interviewer)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, seeded.ID, active.ID)

	list, total, err := sessions.ListForUser(dbc, SessionListFilter{UserID: interviewer})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)

	list, total, err = sessions.ListForUser(dbc, SessionListFilter{UserID: interviewer, Status: types.SessionEnded})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, list)

	none, err := sessions.FindActiveForUser(dbc, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSessionRepoUpdateFieldsIfStatus(t *testing.T) {
	db := testutil.DB(t)
	sessions := NewSessionRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	s := testutil.SeedSession(t, db, uuid.New(), uuid.New())

	ok, err := sessions.UpdateFieldsIfStatus(dbc, s.ID, []types.SessionStatus{types.SessionScheduled}, map[string]interface{}{"status": types.SessionActive})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = sessions.UpdateFieldsIfStatus(dbc, s.ID, []types.SessionStatus{types.SessionScheduled}, map[string]interface{}{"status": types.SessionCanceled})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := sessions.GetByID(dbc, s.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionActive, got.Status)
}

func TestSessionRepoDeleteCascades(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	sessions := NewSessionRepo(db, log)
	participants := NewParticipantRepo(db, log)
	artifacts := NewArtifactRepo(db, log)
	dbc := dbctx.Context{Ctx: context.Background()}

	s := testutil.SeedSession(t, db, uuid.New(), uuid.New())
	testutil.SeedArtifact(t, db, s.ID, types.ArtifactAudioMixed, "sessions/x/a.wav", 10, time.Now())

	require.NoError(t, sessions.Delete(dbc, s.ID))

	got, err := sessions.GetByID(dbc, s.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	ps, err := participants.ListBySession(dbc, s.ID)
	require.NoError(t, err)
	assert.Empty(t, ps)

	as, err := artifacts.ListBySession(dbc, s.ID)
	require.NoError(t, err)
	assert.Empty(t, as)
}

func TestParticipantRepoJoinLeave(t *testing.T) {
	db := testutil.DB(t)
	participants := NewParticipantRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	candidate, interviewer := uuid.New(), uuid.New()
	s := testutil.SeedSession(t, db, candidate, interviewer)

	first := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)
	require.NoError(t, participants.MarkJoined(dbc, s.ID, interviewer, first))
	require.NoError(t, participants.MarkLeft(dbc, s.ID, interviewer, time.Now().UTC()))

	p, err := participants.Get(dbc, s.ID, interviewer)
	require.NoError(t, err)
	require.NotNil(t, p.LeftAt)

	require.NoError(t, participants.MarkJoined(dbc, s.ID, interviewer, time.Now().UTC()))
	p, err = participants.Get(dbc, s.ID, interviewer)
	require.NoError(t, err)
	assert.Nil(t, p.LeftAt, "rejoin clears left_at")
	require.NotNil(t, p.JoinedAt)
	assert.True(t, p.JoinedAt.Equal(first), "joined_at keeps the first join")

	require.NoError(t, participants.MarkAllLeft(dbc, s.ID, time.Now().UTC()))
	all, err := participants.ListBySession(dbc, s.ID)
	require.NoError(t, err)
	for _, p := range all {
		assert.NotNil(t, p.LeftAt)
	}
}

func TestArtifactRepoListOrder(t *testing.T) {
	db := testutil.DB(t)
	artifacts := NewArtifactRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	sessionID := uuid.New()
	base := time.Now().UTC()
	left := testutil.SeedArtifact(t, db, sessionID, types.ArtifactAudioLeft, "l.wav", 1, base)
	mixed := testutil.SeedArtifact(t, db, sessionID, types.ArtifactAudioMixed, "m.wav", 1, base.Add(time.Second))

	list, err := artifacts.ListBySession(dbc, sessionID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, left.ID, list[0].ID)
	assert.Equal(t, mixed.ID, types.SelectSourceArtifact(list).ID)

	require.NoError(t, artifacts.UpdateFields(dbc, left.ID, map[string]interface{}{"size_bytes": int64(512)}))
	got, err := artifacts.GetByID(dbc, left.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 512, got.SizeBytes)
}
