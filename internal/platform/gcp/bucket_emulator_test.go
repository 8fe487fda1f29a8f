package gcp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

func newEmulatorBucket(t *testing.T, handler http.Handler) *bucketService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("STORAGE_EMULATOR_HOST", srv.URL)

	svc, err := NewBucketService(logger.Nop(), ObjectStorageConfig{
		Mode:          ObjectStorageModeGCSEmulator,
		EmulatorHost:  srv.URL,
		PublicBaseURL: "http://localhost:4443",
		Bucket:        "recordings",
	})
	if err != nil {
		t.Fatalf("NewBucketService: %v", err)
	}
	return svc.(*bucketService)
}

func TestEmulatorStatObject(t *testing.T) {
	bs := newEmulatorBucket(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.EscapedPath() {
		case "/storage/v1/b/recordings/o/sessions%2Fs1%2Fartifacts%2Fa1%2Fmix.wav":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"size":"1024","contentType":"audio/wav","updated":"2026-01-02T03:04:05Z","etag":"abc"}`))
		case "/storage/v1/b/recordings/o/sessions%2Fs1%2Fartifacts%2Fa2%2Fmix.wav":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"size":"","contentType":"audio/wav"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	ctx := context.Background()

	attrs, err := bs.StatObject(ctx, "recordings/sessions/s1/artifacts/a1/mix.wav")
	if err != nil {
		t.Fatalf("StatObject: %v", err)
	}
	if attrs.Size != 1024 || attrs.ContentType != "audio/wav" {
		t.Fatalf("attrs: got=%+v", attrs)
	}

	if _, err := bs.StatObject(ctx, "sessions/s1/artifacts/a2/mix.wav"); err == nil || errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("StatObject with unreadable size: want decode error, got %v", err)
	}

	exists, err := bs.ObjectExists(ctx, "sessions/s1/artifacts/a1/missing.wav")
	if err != nil {
		t.Fatalf("ObjectExists: %v", err)
	}
	if exists {
		t.Fatalf("missing object reported as existing")
	}
}

func TestEmulatorPresignedURLs(t *testing.T) {
	bs := newEmulatorBucket(t, http.NotFoundHandler())
	ctx := context.Background()

	up, err := bs.PresignUpload(ctx, "sessions/s1/artifacts/a1/my file.wav", time.Hour)
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}
	if up != "http://localhost:4443/recordings/sessions/s1/artifacts/a1/my%20file.wav" {
		t.Fatalf("upload url: got=%q", up)
	}

	down, err := bs.PresignDownload(ctx, bs.QualifiedPath("sessions/s1/artifacts/a1/mix.wav"), time.Hour)
	if err != nil {
		t.Fatalf("PresignDownload: %v", err)
	}
	if !strings.HasSuffix(down, "/storage/v1/b/recordings/o/sessions%2Fs1%2Fartifacts%2Fa1%2Fmix.wav?alt=media") {
		t.Fatalf("download url: got=%q", down)
	}
}

func TestQualifiedPathRoundTrip(t *testing.T) {
	bs := &bucketService{bucket: "recordings"}
	key := "sessions/s1/artifacts/a1/mix.wav"

	full := bs.QualifiedPath(key)
	if full != "recordings/"+key {
		t.Fatalf("QualifiedPath: got=%q", full)
	}
	if again := bs.QualifiedPath(full); again != full {
		t.Fatalf("QualifiedPath not idempotent: got=%q", again)
	}
	for _, locator := range []string{key, full, "gs://" + full, "/" + full} {
		if got := bs.ObjectKey(locator); got != key {
			t.Fatalf("ObjectKey(%q): got=%q", locator, got)
		}
	}
}
