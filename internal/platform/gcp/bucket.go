package gcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

// ErrObjectNotFound is returned by StatObject when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// BucketService is the artifact store gateway: time-bounded upload and
// download URLs plus existence and metadata checks on uploaded recordings.
type BucketService interface {
	PresignUpload(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
	ObjectExists(ctx context.Context, key string) (bool, error)
	StatObject(ctx context.Context, key string) (*ObjectAttrs, error)
	// QualifiedPath returns the "<bucket>/<key>" locator stored on completed artifacts.
	QualifiedPath(key string) string
	// ObjectKey reverses QualifiedPath; plain keys pass through.
	ObjectKey(locator string) string
}

type ObjectAttrs struct {
	Size        int64
	ContentType string
	Updated     time.Time
	ETag        string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	httpClient    *http.Client
	storageMode   ObjectStorageMode
	emulatorHost  string
	publicBaseURL string
	bucket        string
	signerEmail   string
	signerKey     []byte
}

func NewBucketService(log *logger.Logger, storageCfg ObjectStorageConfig) (BucketService, error) {
	if err := ValidateObjectStorageConfig(storageCfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	serviceLog := log.With("service", "BucketService")

	stClient, err := newStorageClientForMode(context.Background(), storageCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	publicBase := strings.TrimRight(strings.TrimSpace(storageCfg.PublicBaseURL), "/")
	if publicBase == "" && storageCfg.IsEmulatorMode() {
		publicBase = strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/")
	}

	serviceLog.Info(
		"Object storage initialized",
		"mode", storageCfg.Mode,
		"mode_source", storageCfg.ModeSource(),
		"emulator_host", storageCfg.EmulatorHost,
		"public_base_url", publicBase,
		"bucket", storageCfg.Bucket,
		"explicit_signer", storageCfg.SignerEmail != "",
	)

	bs := &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		storageMode:   storageCfg.Mode,
		emulatorHost:  strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/"),
		publicBaseURL: publicBase,
		bucket:        storageCfg.Bucket,
		signerEmail:   storageCfg.SignerEmail,
	}
	if storageCfg.SignerPrivateKey != "" {
		bs.signerKey = []byte(storageCfg.SignerPrivateKey)
	}
	return bs, nil
}

func newStorageClientForMode(ctx context.Context, storageCfg ObjectStorageConfig) (*storage.Client, error) {
	switch storageCfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		endpoint := strings.TrimRight(strings.TrimSpace(storageCfg.EmulatorHost), "/")
		_ = os.Setenv("STORAGE_EMULATOR_HOST", endpoint)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Mode: string(storageCfg.Mode)}
	}
}

func (bs *bucketService) isEmulatorMode() bool {
	return bs != nil && IsEmulatorObjectStorageMode(bs.storageMode) && bs.emulatorHost != ""
}

func IsEmulatorObjectStorageMode(mode ObjectStorageMode) bool {
	return mode == ObjectStorageModeGCSEmulator
}

func (bs *bucketService) QualifiedPath(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if strings.HasPrefix(key, bs.bucket+"/") {
		return key
	}
	return bs.bucket + "/" + key
}

func (bs *bucketService) ObjectKey(locator string) string {
	key := strings.TrimSpace(locator)
	key = strings.TrimPrefix(key, "gs://")
	key = strings.TrimLeft(key, "/")
	return strings.TrimPrefix(key, bs.bucket+"/")
}

func (bs *bucketService) signedURL(key, method string, ttl time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  method,
		Expires: time.Now().Add(ttl),
	}
	if bs.signerEmail != "" && len(bs.signerKey) > 0 {
		opts.GoogleAccessID = bs.signerEmail
		opts.PrivateKey = bs.signerKey
	}
	u, err := bs.storageClient.Bucket(bs.bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("sign %s url for %q: %w", method, key, err)
	}
	return u, nil
}

// PresignUpload returns a URL the client PUTs the recording bytes to. The
// emulator has no signer, so it gets the XML-style object path directly.
func (bs *bucketService) PresignUpload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	key = bs.ObjectKey(key)
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	if bs.isEmulatorMode() {
		return fmt.Sprintf("%s/%s/%s", bs.publicBaseURL, url.PathEscape(bs.bucket), escapeKey(key)), nil
	}
	return bs.signedURL(key, http.MethodPut, ttl)
}

func (bs *bucketService) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	key = bs.ObjectKey(key)
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	if bs.isEmulatorMode() {
		return bs.emulatorObjectMediaURL(bs.emulatorHost, key), nil
	}
	return bs.signedURL(key, http.MethodGet, ttl)
}

func (bs *bucketService) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := bs.StatObject(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (bs *bucketService) emulatorObjectMediaURL(base, key string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", base, url.PathEscape(bs.bucket), url.PathEscape(key))
}

func (bs *bucketService) emulatorObjectMetaURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s", bs.emulatorHost, url.PathEscape(bs.bucket), url.PathEscape(key))
}

func (bs *bucketService) StatObject(ctx context.Context, key string) (*ObjectAttrs, error) {
	key = bs.ObjectKey(key)
	if bs.isEmulatorMode() {
		return bs.statEmulatorObject(ctx, key)
	}
	ctx2, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	attrs, err := bs.storageClient.Bucket(bs.bucket).Object(key).Attrs(ctx2)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch GCS object attrs: %w", err)
	}
	return &ObjectAttrs{
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Updated:     attrs.Updated,
		ETag:        attrs.Etag,
	}, nil
}

func (bs *bucketService) statEmulatorObject(ctx context.Context, key string) (*ObjectAttrs, error) {
	ctx2, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx2, http.MethodGet, bs.emulatorObjectMetaURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("failed creating emulator attrs request: %w", err)
	}
	resp, err := bs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed emulator attrs request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrObjectNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("emulator attrs failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		Size        string `json:"size"`
		ContentType string `json:"contentType"`
		Updated     string `json:"updated"`
		ETag        string `json:"etag"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode emulator attrs: %w", err)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(payload.Size), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode emulator attrs size %q: %w", payload.Size, err)
	}
	var updated time.Time
	if ts := strings.TrimSpace(payload.Updated); ts != "" {
		if parsed, parseErr := time.Parse(time.RFC3339, ts); parseErr == nil {
			updated = parsed
		}
	}
	return &ObjectAttrs{
		Size:        size,
		ContentType: payload.ContentType,
		Updated:     updated,
		ETag:        payload.ETag,
	}, nil
}
