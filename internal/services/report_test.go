package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mockly-backend/internal/clients/ml"
	"github.com/yungbote/mockly-backend/internal/data/repos/testutil"
	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/jobs/worker"
	"github.com/yungbote/mockly-backend/internal/platform/apierr"
	"github.com/yungbote/mockly-backend/internal/realtime"
)

func TestTriggerGenerationProducesReadyReport(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	session, candidate, _ := h.seedSession(t)
	mixed := h.seedArtifact(t, session.ID, types.ArtifactAudioMixed, 0)

	rep, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.NoError(t, err)
	assert.Equal(t, types.ReportPending, rep.Status)

	ev := h.events.waitFor(t, realtime.EventReportReady)
	require.NotNil(t, ev.Report)
	assert.Equal(t, types.ReportReady, ev.Report.Status)
	assert.Equal(t, session.ID, ev.Session.ID)

	final := h.report(t, session.ID)
	assert.Equal(t, types.ReportReady, final.Status)
	assert.Nil(t, final.ErrorMessage)
	require.NotNil(t, final.Summary)
	assert.Equal(t, "Clear answers.", *final.Summary)
	var metrics map[string]any
	require.NoError(t, json.Unmarshal(final.Metrics, &metrics))
	assert.Equal(t, 85.5, metrics["score"])

	reqs := h.ml.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, mixed.ID.String(), reqs[0].ArtifactID)
	assert.Equal(t, "AUDIO_MIXED", reqs[0].ArtifactType)
	assert.Equal(t, "https://download.test/"+mixed.StorageURL, reqs[0].ArtifactURL)

	transcripts, err := h.transcriptRepo.ListBySession(h.dbc(), session.ID)
	require.NoError(t, err)
	require.Len(t, transcripts, 1)
	assert.Equal(t, types.TranscriptMixed, transcripts[0].Source)
	assert.Contains(t, string(transcripts[0].Words), "hello")
	assert.Len(t, h.events.of(realtime.EventTranscriptAdded), 1)

	assert.Equal(t,
		[]realtime.EventType{realtime.EventTranscriptAdded, realtime.EventReportReady},
		h.events.types())
}

func TestTriggerGenerationWithoutTranscript(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.ml.fn = func(ctx context.Context, req ml.ProcessRequest) (*ml.ProcessResponse, error) {
		return &ml.ProcessResponse{Metrics: map[string]any{"score": 70.0}, Summary: "ok"}, nil
	}
	session, candidate, _ := h.seedSession(t)
	h.seedArtifact(t, session.ID, types.ArtifactAudioMixed, 0)

	_, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.NoError(t, err)
	h.events.waitFor(t, realtime.EventReportReady)

	transcripts, err := h.transcriptRepo.ListBySession(h.dbc(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, transcripts)
	assert.Empty(t, h.events.of(realtime.EventTranscriptAdded))
}

func TestTriggerGenerationIsIdempotentWhileProcessing(t *testing.T) {
	h := newHarness(t, harnessOpts{pool: worker.Config{Concurrency: 2}})
	entered := make(chan struct{})
	release := make(chan struct{})
	h.ml.fn = func(ctx context.Context, req ml.ProcessRequest) (*ml.ProcessResponse, error) {
		close(entered)
		<-release
		return scorecard(), nil
	}
	session, candidate, interviewer := h.seedSession(t)
	h.seedArtifact(t, session.ID, types.ArtifactAudioMixed, 0)

	_, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.NoError(t, err)
	<-entered

	again, err := h.reports.TriggerGeneration(h.dbc(), session.ID, interviewer)
	require.NoError(t, err)
	assert.Equal(t, types.ReportProcessing, again.Status)

	close(release)
	h.events.waitFor(t, realtime.EventReportReady)
	assert.Len(t, h.ml.requests(), 1)
	assert.Len(t, h.events.of(realtime.EventReportReady), 1)
}

func TestTriggerGenerationReturnsReadyReportUnchanged(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	session, candidate, _ := h.seedSession(t)
	h.seedArtifact(t, session.ID, types.ArtifactAudioMixed, 0)
	seeded := testutil.SeedReport(t, h.db, session.ID, types.ReportReady, nil)

	rep, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, rep.ID)
	assert.Equal(t, types.ReportReady, rep.Status)
	assert.Empty(t, h.ml.requests())
}

func TestTriggerGenerationRetriesAfterFailure(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	var calls atomic.Int32
	h.ml.fn = func(ctx context.Context, req ml.ProcessRequest) (*ml.ProcessResponse, error) {
		if calls.Add(1) == 1 {
			return nil, &ml.ProcessingError{Op: "process", StatusCode: http.StatusInternalServerError, Message: "model crashed"}
		}
		return scorecard(), nil
	}
	session, candidate, _ := h.seedSession(t)
	h.seedArtifact(t, session.ID, types.ArtifactAudioMixed, 0)

	_, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.NoError(t, err)

	failedEv := h.events.waitFor(t, realtime.EventReportFailed)
	require.NotNil(t, failedEv.Report)
	failed := h.report(t, session.ID)
	assert.Equal(t, types.ReportFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "Report generation failed")
	assert.Contains(t, *failed.ErrorMessage, "model crashed")
	assert.Nil(t, failed.Summary)
	assert.Empty(t, h.events.of(realtime.EventReportReady))

	retried, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.NoError(t, err)
	assert.Equal(t, failed.ID, retried.ID)
	assert.Equal(t, types.ReportPending, retried.Status)
	assert.Nil(t, retried.ErrorMessage)

	h.events.waitFor(t, realtime.EventReportReady)
	final := h.report(t, session.ID)
	assert.Equal(t, types.ReportReady, final.Status)
	assert.Nil(t, final.ErrorMessage)
}

func TestTriggerGenerationPrefersMixedArtifact(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	session, candidate, _ := h.seedSession(t)
	h.seedArtifact(t, session.ID, types.ArtifactAudioLeft, -2*time.Minute)
	mixed := h.seedArtifact(t, session.ID, types.ArtifactAudioMixed, -time.Minute)

	_, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.NoError(t, err)
	h.events.waitFor(t, realtime.EventReportReady)

	reqs := h.ml.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, mixed.ID.String(), reqs[0].ArtifactID)
}

func TestTriggerGenerationFallsBackToChannelAudio(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	session, candidate, _ := h.seedSession(t)
	h.seedArtifact(t, session.ID, types.ArtifactRawWebRTC, -3*time.Minute)
	right := h.seedArtifact(t, session.ID, types.ArtifactAudioRight, -2*time.Minute)
	h.seedArtifact(t, session.ID, types.ArtifactAudioLeft, -time.Minute)

	_, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.NoError(t, err)
	h.events.waitFor(t, realtime.EventReportReady)

	reqs := h.ml.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, right.ID.String(), reqs[0].ArtifactID)
	assert.Equal(t, "AUDIO_RIGHT", reqs[0].ArtifactType)
}

func TestTriggerGenerationWithoutAudioKeepsPlaceholder(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	session, candidate, _ := h.seedSession(t)
	h.seedArtifact(t, session.ID, types.ArtifactRawWebRTC, 0)

	_, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apierr.StatusOf(err))
	assert.Equal(t, "no_audio_artifact", apierr.CodeOf(err))

	rep := h.report(t, session.ID)
	require.NotNil(t, rep)
	assert.Equal(t, types.ReportPending, rep.Status)
	assert.Empty(t, h.ml.requests())
}

func TestTriggerGenerationQueueFull(t *testing.T) {
	h := newHarness(t, harnessOpts{pool: worker.Config{Concurrency: 1, QueueSize: 1}, holdPool: true})
	require.NoError(t, h.pool.Submit(worker.Task{Name: "filler", Run: func(context.Context) error { return nil }}))

	session, candidate, _ := h.seedSession(t)
	h.seedArtifact(t, session.ID, types.ArtifactAudioMixed, 0)

	_, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, apierr.StatusOf(err))
	assert.True(t, errors.Is(err, worker.ErrQueueFull))

	rep := h.report(t, session.ID)
	assert.Equal(t, types.ReportFailed, rep.Status)
	require.NotNil(t, rep.ErrorMessage)
	assert.Equal(t, "report queue is full", *rep.ErrorMessage)
	failed := h.events.of(realtime.EventReportFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, rep.ID, failed[0].Report.ID)
}

func TestTriggerGenerationQueueFullKeepsQueuedCycle(t *testing.T) {
	h := newHarness(t, harnessOpts{pool: worker.Config{Concurrency: 1, QueueSize: 1}, holdPool: true})
	session, candidate, interviewer := h.seedSession(t)
	h.seedArtifact(t, session.ID, types.ArtifactAudioMixed, 0)

	first, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.NoError(t, err)
	assert.Equal(t, types.ReportPending, first.Status)

	_, err = h.reports.TriggerGeneration(h.dbc(), session.ID, interviewer)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, apierr.StatusOf(err))
	assert.Equal(t, types.ReportPending, h.report(t, session.ID).Status)
	assert.Empty(t, h.events.of(realtime.EventReportFailed))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.pool.Start(ctx)
	rep := h.waitStatus(t, session.ID, types.ReportReady)
	assert.Equal(t, first.ID, rep.ID)
	assert.Len(t, h.ml.requests(), 1)
	assert.Empty(t, h.events.of(realtime.EventReportFailed))
}

func TestTriggerGenerationAfterPoolShutdown(t *testing.T) {
	h := newHarness(t, harnessOpts{holdPool: true})
	h.drain(t)

	session, candidate, _ := h.seedSession(t)
	h.seedArtifact(t, session.ID, types.ArtifactAudioMixed, 0)

	_, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, apierr.StatusOf(err))
	assert.True(t, errors.Is(err, worker.ErrPoolClosed))

	rep := h.report(t, session.ID)
	assert.Equal(t, types.ReportFailed, rep.Status)
	require.NotNil(t, rep.ErrorMessage)
	assert.Equal(t, "report worker is shutting down", *rep.ErrorMessage)
	assert.Len(t, h.events.of(realtime.EventReportFailed), 1)
}

func TestPanicAfterReadyKeepsReport(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.events.panicOn = realtime.EventReportReady
	session, candidate, _ := h.seedSession(t)
	h.seedArtifact(t, session.ID, types.ArtifactAudioMixed, 0)

	_, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.NoError(t, err)
	h.events.waitFor(t, realtime.EventReportReady)
	h.drain(t)

	rep := h.report(t, session.ID)
	assert.Equal(t, types.ReportReady, rep.Status)
	assert.Nil(t, rep.ErrorMessage)
	assert.Empty(t, h.events.of(realtime.EventReportFailed))
}

func TestProcessingPanicMarksReportFailed(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.ml.fn = func(ctx context.Context, req ml.ProcessRequest) (*ml.ProcessResponse, error) {
		panic("scorer blew up")
	}
	session, candidate, _ := h.seedSession(t)
	h.seedArtifact(t, session.ID, types.ArtifactAudioMixed, 0)

	_, err := h.reports.TriggerGeneration(h.dbc(), session.ID, candidate)
	require.NoError(t, err)

	h.events.waitFor(t, realtime.EventReportFailed)
	rep := h.report(t, session.ID)
	assert.Equal(t, types.ReportFailed, rep.Status)
	require.NotNil(t, rep.ErrorMessage)
	assert.Equal(t, "Report generation failed: unexpected error", *rep.ErrorMessage)
}

func TestTriggerGenerationAccessControl(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	session, _, _ := h.seedSession(t)

	_, err := h.reports.TriggerGeneration(h.dbc(), session.ID, uuid.New())
	assert.Equal(t, http.StatusForbidden, apierr.StatusOf(err))

	_, err = h.reports.TriggerGeneration(h.dbc(), uuid.New(), uuid.New())
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))
	assert.Nil(t, h.report(t, session.ID))
}

func TestGetReport(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	session, candidate, _ := h.seedSession(t)

	_, err := h.reports.GetReport(h.dbc(), session.ID, candidate)
	assert.Equal(t, http.StatusNotFound, apierr.StatusOf(err))

	testutil.SeedReport(t, h.db, session.ID, types.ReportPending, nil)
	rep, err := h.reports.GetReport(h.dbc(), session.ID, candidate)
	require.NoError(t, err)
	assert.Equal(t, types.ReportPending, rep.Status)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "Report generation failed: unexpected error", failureMessage(&worker.PanicError{Val: "x"}))
	assert.Equal(t, "Report generation failed: artifact not found", failureMessage(errors.New("artifact not found")))
}
