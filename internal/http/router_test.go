package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/mockly-backend/internal/clients/livekit"
	"github.com/yungbote/mockly-backend/internal/clients/ml"
	"github.com/yungbote/mockly-backend/internal/data/repos"
	"github.com/yungbote/mockly-backend/internal/data/repos/testutil"
	httpH "github.com/yungbote/mockly-backend/internal/http/handlers"
	httpMW "github.com/yungbote/mockly-backend/internal/http/middleware"
	"github.com/yungbote/mockly-backend/internal/jobs/worker"
	"github.com/yungbote/mockly-backend/internal/mlstub"
	"github.com/yungbote/mockly-backend/internal/observability"
	"github.com/yungbote/mockly-backend/internal/platform/authtoken"
	"github.com/yungbote/mockly-backend/internal/platform/gcp"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
	"github.com/yungbote/mockly-backend/internal/realtime"
	"github.com/yungbote/mockly-backend/internal/services"
)

const webhookSecret = "hook-secret"

type memBucket struct {
	mu      sync.Mutex
	objects map[string]int64
}

func (b *memBucket) put(key string, size int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = size
}

func (b *memBucket) PresignUpload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://upload.test/" + b.ObjectKey(key), nil
}

func (b *memBucket) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://download.test/" + b.ObjectKey(key), nil
}

func (b *memBucket) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := b.StatObject(ctx, key)
	return err == nil, nil
}

func (b *memBucket) StatObject(ctx context.Context, key string) (*gcp.ObjectAttrs, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	size, ok := b.objects[b.ObjectKey(key)]
	if !ok {
		return nil, gcp.ErrObjectNotFound
	}
	return &gcp.ObjectAttrs{Size: size}, nil
}

func (b *memBucket) QualifiedPath(key string) string { return "recordings/" + b.ObjectKey(key) }

func (b *memBucket) ObjectKey(locator string) string { return strings.TrimPrefix(locator, "recordings/") }

type apiEnv struct {
	srv      *httptest.Server
	bucket   *memBucket
	verifier *authtoken.Verifier
	hub      *realtime.SSEHub
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	gdb := testutil.DB(t)

	stub := httptest.NewServer(mlstub.NewRouter(log))
	t.Cleanup(stub.Close)
	mlClient, err := ml.New(log, ml.Options{BaseURL: stub.URL})
	require.NoError(t, err)

	verifier, err := authtoken.NewVerifier("test-secret", "mockly")
	require.NoError(t, err)
	tokens, err := livekit.NewTokenIssuer(livekit.Config{URL: "wss://rooms.test", APIKey: "key", APISecret: "secret"})
	require.NoError(t, err)

	bucket := &memBucket{objects: map[string]int64{}}
	hub := realtime.NewSSEHub(log)
	notify := services.NewSessionNotifier(&services.HubEmitter{Hub: hub})
	metrics := observability.NewMetrics()

	pool := worker.NewPool(log, worker.Config{Concurrency: 2, QueueSize: 10})
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		_ = pool.Shutdown(context.Background())
		cancel()
	})

	sessionRepo := repos.NewSessionRepo(gdb, log)
	artifactRepo := repos.NewArtifactRepo(gdb, log)
	sessions := services.NewSessionService(log, sessionRepo, repos.NewParticipantRepo(gdb, log), tokens, notify)
	reports := services.NewReportService(log, sessionRepo, artifactRepo, repos.NewReportRepo(gdb, log),
		repos.NewTranscriptRepo(gdb, log), bucket, mlClient, pool, notify, metrics, services.ReportConfig{})
	artifacts := services.NewArtifactService(log, sessionRepo, artifactRepo, bucket, reports, pool, notify,
		metrics, services.ArtifactConfig{})

	router := NewRouter(RouterConfig{
		Log:             log,
		Metrics:         metrics,
		AuthMiddleware:  httpMW.NewAuthMiddleware(log, verifier),
		SessionHandler:  httpH.NewSessionHandler(sessions),
		ArtifactHandler: httpH.NewArtifactHandler(artifacts),
		ReportHandler:   httpH.NewReportHandler(reports),
		RealtimeHandler: httpH.NewRealtimeHandler(log, hub, sessions),
		WebhookHandler:  httpH.NewWebhookHandler(log, sessions, webhookSecret),
		HealthHandler:   httpH.NewHealthHandler(map[string]httpH.ReadinessCheck{
			"ml": mlClient.Health,
		}),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
	})
	return &apiEnv{srv: srv, bucket: bucket, verifier: verifier, hub: hub}
}

func (e *apiEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := e.verifier.Issue(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := nethttp.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

type streamEvent struct {
	Name string
	Data map[string]any
}

// openStream connects to the session event stream and returns a channel of
// decoded events as they arrive.
func (e *apiEnv) openStream(t *testing.T, sessionID, token string) <-chan streamEvent {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet,
		fmt.Sprintf("%s/api/sessions/%s/events?token=%s", e.srv.URL, sessionID, token), nil)
	require.NoError(t, err)
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan streamEvent, 16)
	go func() {
		defer resp.Body.Close()
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var name string
		for sc.Scan() {
			line := sc.Text()
			if v, ok := strings.CutPrefix(line, "event: "); ok {
				name = v
				continue
			}
			if v, ok := strings.CutPrefix(line, "data: "); ok && name != "" {
				ev := streamEvent{Name: name, Data: map[string]any{}}
				_ = json.Unmarshal([]byte(v), &ev.Data)
				name = ""
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events
}

func waitEvent(t *testing.T, events <-chan streamEvent, want string) streamEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed before %s", want)
			if ev.Name == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", want)
			return streamEvent{}
		}
	}
}

// requireNoEvent fails if an event named name arrives within d.
func requireNoEvent(t *testing.T, events <-chan streamEvent, name string, d time.Duration) {
	t.Helper()
	timeout := time.After(d)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			require.NotEqual(t, name, ev.Name, "unexpected extra %s event", name)
		case <-timeout:
			return
		}
	}
}

func TestHealthcheck(t *testing.T) {
	env := newAPIEnv(t)
	resp, err := env.srv.Client().Get(env.srv.URL + "/healthcheck")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-Id"))

	ready, err := env.srv.Client().Get(env.srv.URL + "/readyz")
	require.NoError(t, err)
	defer ready.Body.Close()
	assert.Equal(t, nethttp.StatusOK, ready.StatusCode)
}

func TestUploadToReadyReportEndToEnd(t *testing.T) {
	env := newAPIEnv(t)
	candidate, interviewer := uuid.New(), uuid.New()
	tok := env.token(t, candidate)

	status, body := env.do(t, nethttp.MethodPost, "/api/sessions", tok, map[string]any{"interviewerId": interviewer})
	require.Equal(t, nethttp.StatusCreated, status, body)
	sessionID := body["session"].(map[string]any)["id"].(string)

	interviewerTok := env.token(t, interviewer)
	events := env.openStream(t, sessionID, interviewerTok)
	require.Eventually(t, func() bool {
		return env.hub.Subscribers("session:"+sessionID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	status, body = env.do(t, nethttp.MethodPost, "/api/sessions/"+sessionID+"/join", interviewerTok, nil)
	require.Equal(t, nethttp.StatusOK, status, body)
	assert.Equal(t, "ACTIVE", body["session"].(map[string]any)["status"])

	status, body = env.do(t, nethttp.MethodPost, "/api/sessions/"+sessionID+"/artifacts/request-upload", tok, map[string]any{
		"type": "AUDIO_MIXED", "fileName": "interview.webm", "fileSizeBytes": 4096, "contentType": "audio/webm",
	})
	require.Equal(t, nethttp.StatusCreated, status, body)
	artifactID := body["artifactId"].(string)
	env.bucket.put(body["objectName"].(string), 4096)

	status, body = env.do(t, nethttp.MethodPost, "/api/sessions/"+sessionID+"/artifacts/"+artifactID+"/complete", tok, map[string]any{
		"fileSizeBytes": 4096, "durationSec": 300,
	})
	require.Equal(t, nethttp.StatusOK, status, body)

	waitEvent(t, events, "ARTIFACT_UPLOADED")
	waitEvent(t, events, "TRANSCRIPT_ADDED")
	ready := waitEvent(t, events, "REPORT_READY")
	readyReport, ok := ready.Data["report"].(map[string]any)
	require.True(t, ok, "REPORT_READY without report: %v", ready.Data)

	status, body = env.do(t, nethttp.MethodGet, "/api/sessions/"+sessionID+"/report", tok, nil)
	require.Equal(t, nethttp.StatusOK, status)
	report := body["report"].(map[string]any)
	assert.Equal(t, "READY", report["status"])
	assert.Equal(t, 85.5, report["metrics"].(map[string]any)["score"])
	assert.Equal(t, report["id"], readyReport["id"])

	// A repeat trigger leaves the finished report alone.
	status, body = env.do(t, nethttp.MethodPost, "/api/sessions/"+sessionID+"/report/trigger", tok, nil)
	require.Equal(t, nethttp.StatusAccepted, status)
	assert.Equal(t, "READY", body["report"].(map[string]any)["status"])
	assert.Equal(t, report["id"], body["report"].(map[string]any)["id"])

	requireNoEvent(t, events, "REPORT_READY", 300*time.Millisecond)
}

func TestCompleteUploadSizeMismatchEnvelope(t *testing.T) {
	env := newAPIEnv(t)
	candidate := uuid.New()
	tok := env.token(t, candidate)

	_, body := env.do(t, nethttp.MethodPost, "/api/sessions", tok, map[string]any{"interviewerId": uuid.New()})
	sessionID := body["session"].(map[string]any)["id"].(string)
	_, body = env.do(t, nethttp.MethodPost, "/api/sessions/"+sessionID+"/artifacts/request-upload", tok, map[string]any{
		"type": "AUDIO_LEFT", "fileName": "left.wav", "fileSizeBytes": 100,
	})
	artifactID := body["artifactId"].(string)
	env.bucket.put(body["objectName"].(string), 60)

	status, body := env.do(t, nethttp.MethodPost, "/api/sessions/"+sessionID+"/artifacts/"+artifactID+"/complete", tok, nil)
	require.Equal(t, nethttp.StatusUnprocessableEntity, status)
	apiErr := body["error"].(map[string]any)
	assert.Equal(t, "upload_verification_failed", apiErr["code"])
	assert.EqualValues(t, 100, apiErr["expected"])
	assert.EqualValues(t, 60, apiErr["actual"])
}

func TestEventStreamAccess(t *testing.T) {
	env := newAPIEnv(t)
	candidate := uuid.New()
	_, body := env.do(t, nethttp.MethodPost, "/api/sessions", env.token(t, candidate), map[string]any{"interviewerId": uuid.New()})
	sessionID := body["session"].(map[string]any)["id"].(string)

	status, _ := env.do(t, nethttp.MethodGet, "/api/sessions/"+sessionID+"/events", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	status, _ = env.do(t, nethttp.MethodGet, "/api/sessions/"+sessionID+"/events", "not-a-jwt", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)

	status, body = env.do(t, nethttp.MethodGet, "/api/sessions/"+sessionID+"/events", env.token(t, uuid.New()), nil)
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["error"].(map[string]any)["code"])
}

func TestLiveKitWebhook(t *testing.T) {
	env := newAPIEnv(t)
	candidate := uuid.New()
	tok := env.token(t, candidate)
	_, body := env.do(t, nethttp.MethodPost, "/api/sessions", tok, map[string]any{"interviewerId": uuid.New()})
	session := body["session"].(map[string]any)
	sessionID := session["id"].(string)

	post := func(payload, signature string) int {
		req, err := nethttp.NewRequest(nethttp.MethodPost, env.srv.URL+"/api/webhooks/livekit", strings.NewReader(payload))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set("Authorization", signature)
		}
		resp, err := env.srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	sign := func(payload string) string {
		return base64.StdEncoding.EncodeToString(livekit.Sign(webhookSecret, []byte(payload)))
	}

	started := fmt.Sprintf(`{"event":"room_started","room":{"name":%q}}`, session["roomId"])
	assert.Equal(t, nethttp.StatusUnauthorized, post(started, ""))
	assert.Equal(t, nethttp.StatusUnauthorized, post(started, sign(started+" ")))
	assert.Equal(t, nethttp.StatusOK, post(started, sign(started)))

	_, body = env.do(t, nethttp.MethodGet, "/api/sessions/"+sessionID, tok, nil)
	assert.Equal(t, "ACTIVE", body["session"].(map[string]any)["status"])

	finished := fmt.Sprintf(`{"event":"room_finished","room":%q}`, session["roomId"])
	assert.Equal(t, nethttp.StatusOK, post(finished, sign(finished)))
	_, body = env.do(t, nethttp.MethodGet, "/api/sessions/"+sessionID, tok, nil)
	assert.Equal(t, "ENDED", body["session"].(map[string]any)["status"])

	unknown := `{"event":"room_started","room":"lobby"}`
	assert.Equal(t, nethttp.StatusOK, post(unknown, sign(unknown)))
}
