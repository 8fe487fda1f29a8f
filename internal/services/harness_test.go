package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/mockly-backend/internal/clients/livekit"
	"github.com/yungbote/mockly-backend/internal/clients/ml"
	"github.com/yungbote/mockly-backend/internal/data/repos"
	"github.com/yungbote/mockly-backend/internal/data/repos/testutil"
	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/jobs/worker"
	"github.com/yungbote/mockly-backend/internal/observability"
	"github.com/yungbote/mockly-backend/internal/platform/dbctx"
	"github.com/yungbote/mockly-backend/internal/platform/gcp"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
	"github.com/yungbote/mockly-backend/internal/realtime"
)

const testBucket = "test-bucket"

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]int64
}

func newFakeBucket() *fakeBucket { return &fakeBucket{objects: map[string]int64{}} }

func (b *fakeBucket) put(key string, size int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[b.ObjectKey(key)] = size
}

func (b *fakeBucket) PresignUpload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://upload.test/" + b.ObjectKey(key), nil
}

func (b *fakeBucket) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://download.test/" + b.ObjectKey(key), nil
}

func (b *fakeBucket) ObjectExists(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[b.ObjectKey(key)]
	return ok, nil
}

func (b *fakeBucket) StatObject(ctx context.Context, key string) (*gcp.ObjectAttrs, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	size, ok := b.objects[b.ObjectKey(key)]
	if !ok {
		return nil, gcp.ErrObjectNotFound
	}
	return &gcp.ObjectAttrs{Size: size}, nil
}

func (b *fakeBucket) QualifiedPath(key string) string {
	return testBucket + "/" + b.ObjectKey(key)
}

func (b *fakeBucket) ObjectKey(locator string) string {
	return strings.TrimPrefix(strings.TrimLeft(locator, "/"), testBucket+"/")
}

// fakeProcessor records requests and answers with fn, or a fixed scorecard.
type fakeProcessor struct {
	mu    sync.Mutex
	calls []ml.ProcessRequest
	fn    func(ctx context.Context, req ml.ProcessRequest) (*ml.ProcessResponse, error)
}

func (p *fakeProcessor) Process(ctx context.Context, req ml.ProcessRequest) (*ml.ProcessResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return scorecard(), nil
}

func (p *fakeProcessor) requests() []ml.ProcessRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ml.ProcessRequest(nil), p.calls...)
}

func scorecard() *ml.ProcessResponse {
	return &ml.ProcessResponse{
		Metrics:         map[string]any{"score": 85.5, "communication": 80.0},
		Summary:         "Clear answers.",
		Recommendations: "Slow down.",
		Transcript: map[string]any{
			"text":  "hello there",
			"words": []any{map[string]any{"word": "hello", "start": 0.0}},
		},
	}
}

// captureEmitter records every message. When panicOn is set it panics after
// recording a message of that type.
type captureEmitter struct {
	mu      sync.Mutex
	msgs    []realtime.SSEMessage
	panicOn realtime.EventType
}

func (e *captureEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	e.mu.Lock()
	e.msgs = append(e.msgs, msg)
	panicOn := e.panicOn
	e.mu.Unlock()
	if panicOn != "" && msg.Event == panicOn {
		panic("emit " + string(msg.Event))
	}
}

func (e *captureEmitter) of(typ realtime.EventType) []SessionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []SessionEvent
	for _, m := range e.msgs {
		if m.Event == typ {
			out = append(out, m.Data.(SessionEvent))
		}
	}
	return out
}

func (e *captureEmitter) types() []realtime.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]realtime.EventType, 0, len(e.msgs))
	for _, m := range e.msgs {
		out = append(out, m.Event)
	}
	return out
}

func (e *captureEmitter) waitFor(t *testing.T, typ realtime.EventType) SessionEvent {
	t.Helper()
	require.Eventually(t, func() bool { return len(e.of(typ)) > 0 }, 5*time.Second, 10*time.Millisecond, "no %s event", typ)
	return e.of(typ)[0]
}

type harness struct {
	db     *gorm.DB
	log    *logger.Logger
	bucket *fakeBucket
	ml     *fakeProcessor
	events *captureEmitter
	pool   *worker.Pool

	sessionRepo    repos.SessionRepo
	artifactRepo   repos.ArtifactRepo
	reportRepo     repos.ReportRepo
	transcriptRepo repos.TranscriptRepo

	sessions  SessionService
	artifacts ArtifactService
	reports   ReportService
}

type harnessOpts struct {
	pool      worker.Config
	holdPool  bool
	tokenless bool
}

func newHarness(t *testing.T, opts harnessOpts) *harness {
	t.Helper()
	gdb := testutil.DB(t)
	log := logger.Nop()

	h := &harness{
		db:             gdb,
		log:            log,
		bucket:         newFakeBucket(),
		ml:             &fakeProcessor{},
		events:         &captureEmitter{},
		pool:           worker.NewPool(log, opts.pool),
		sessionRepo:    repos.NewSessionRepo(gdb, log),
		artifactRepo:   repos.NewArtifactRepo(gdb, log),
		reportRepo:     repos.NewReportRepo(gdb, log),
		transcriptRepo: repos.NewTranscriptRepo(gdb, log),
	}
	notify := NewSessionNotifier(h.events)
	metrics := observability.NewMetrics()

	var tokens *livekit.TokenIssuer
	if !opts.tokenless {
		var err error
		tokens, err = livekit.NewTokenIssuer(livekit.Config{URL: "wss://rooms.test", APIKey: "key", APISecret: "secret"})
		require.NoError(t, err)
	}

	h.reports = NewReportService(log, h.sessionRepo, h.artifactRepo, h.reportRepo, h.transcriptRepo,
		h.bucket, h.ml, h.pool, notify, metrics, ReportConfig{})
	h.artifacts = NewArtifactService(log, h.sessionRepo, h.artifactRepo, h.bucket, h.reports, h.pool,
		notify, metrics, ArtifactConfig{})
	h.sessions = NewSessionService(log, h.sessionRepo, repos.NewParticipantRepo(gdb, log), tokens, notify)

	if !opts.holdPool {
		ctx, cancel := context.WithCancel(context.Background())
		h.pool.Start(ctx)
		t.Cleanup(cancel)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.pool.Shutdown(ctx)
	})
	return h
}

func (h *harness) dbc() dbctx.Context { return dbctx.Background() }

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.pool.Shutdown(ctx))
}

func (h *harness) seedSession(t *testing.T) (session *types.Session, candidate, interviewer uuid.UUID) {
	t.Helper()
	candidate, interviewer = uuid.New(), uuid.New()
	return testutil.SeedSession(t, h.db, candidate, interviewer), candidate, interviewer
}

func (h *harness) seedArtifact(t *testing.T, sessionID uuid.UUID, typ types.ArtifactType, offset time.Duration) *types.Artifact {
	t.Helper()
	key := "sessions/" + sessionID.String() + "/artifacts/" + uuid.NewString() + "/audio.wav"
	h.bucket.put(key, 1024)
	return testutil.SeedArtifact(t, h.db, sessionID, typ, key, 1024, time.Now().UTC().Add(offset))
}

func (h *harness) report(t *testing.T, sessionID uuid.UUID) *types.Report {
	t.Helper()
	r, err := h.reportRepo.GetBySessionID(h.dbc(), sessionID)
	require.NoError(t, err)
	return r
}

func (h *harness) waitStatus(t *testing.T, sessionID uuid.UUID, want types.ReportStatus) *types.Report {
	t.Helper()
	require.Eventually(t, func() bool {
		r := h.report(t, sessionID)
		return r != nil && r.Status == want
	}, 5*time.Second, 10*time.Millisecond, "report never reached %s", want)
	return h.report(t, sessionID)
}
