package gcp

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

// ObjectStorageConfig describes where session recordings live and how
// presigned URLs are minted.
type ObjectStorageConfig struct {
	Mode         ObjectStorageMode `yaml:"mode"`
	EmulatorHost string            `yaml:"emulator_host"`
	Bucket       string            `yaml:"bucket"`
	// PublicBaseURL is the emulator address as reachable by clients, when it
	// differs from EmulatorHost (e.g. docker service name vs localhost).
	PublicBaseURL string `yaml:"public_base_url"`
	// SignerEmail and SignerPrivateKey sign V4 URLs when the ambient
	// credentials cannot (e.g. workload identity without iam.signBlob).
	SignerEmail      string `yaml:"signer_email"`
	SignerPrivateKey string `yaml:"-"`

	CompatibilityFallback bool `yaml:"-"`
}

func (cfg ObjectStorageConfig) IsEmulatorMode() bool {
	return cfg.Mode == ObjectStorageModeGCSEmulator
}

func (cfg ObjectStorageConfig) ModeSource() string {
	if cfg.CompatibilityFallback {
		return "compatibility_fallback"
	}
	return "explicit_or_default"
}

type ObjectStorageConfigErrorCode string

const (
	ObjectStorageConfigErrorInvalidMode         ObjectStorageConfigErrorCode = "invalid_mode"
	ObjectStorageConfigErrorMissingBucket       ObjectStorageConfigErrorCode = "missing_bucket"
	ObjectStorageConfigErrorMissingEmulatorHost ObjectStorageConfigErrorCode = "missing_emulator_host"
	ObjectStorageConfigErrorInvalidURL          ObjectStorageConfigErrorCode = "invalid_url"
)

type ObjectStorageConfigError struct {
	Code  ObjectStorageConfigErrorCode
	Mode  string
	Value string
	Cause error
}

func (e *ObjectStorageConfigError) Error() string {
	if e == nil {
		return "invalid object storage config"
	}
	switch e.Code {
	case ObjectStorageConfigErrorInvalidMode:
		return fmt.Sprintf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", e.Mode, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	case ObjectStorageConfigErrorMissingBucket:
		return "ARTIFACT_BUCKET_NAME is required"
	case ObjectStorageConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST to be set", ObjectStorageModeGCSEmulator)
	case ObjectStorageConfigErrorInvalidURL:
		return fmt.Sprintf("invalid object storage URL %q; expected absolute URL like http://fake-gcs:4443", e.Value)
	default:
		return "invalid object storage config"
	}
}

func (e *ObjectStorageConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolveObjectStorageConfigFromEnv overlays environment variables onto base.
// An unset OBJECT_STORAGE_MODE falls back to the emulator whenever
// STORAGE_EMULATOR_HOST is present.
func ResolveObjectStorageConfigFromEnv(base ObjectStorageConfig) (ObjectStorageConfig, error) {
	cfg := base
	if v := strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")); v != "" {
		cfg.EmulatorHost = v
	}
	if v := strings.TrimSpace(os.Getenv("ARTIFACT_BUCKET_NAME")); v != "" {
		cfg.Bucket = v
	}
	if v := strings.TrimSpace(os.Getenv("OBJECT_STORAGE_PUBLIC_BASE_URL")); v != "" {
		cfg.PublicBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("GCS_SIGNER_EMAIL")); v != "" {
		cfg.SignerEmail = v
	}
	if v := os.Getenv("GCS_SIGNER_PRIVATE_KEY"); strings.TrimSpace(v) != "" {
		cfg.SignerPrivateKey = strings.ReplaceAll(v, `\n`, "\n")
	}

	rawMode := strings.TrimSpace(os.Getenv("OBJECT_STORAGE_MODE"))
	if rawMode == "" {
		rawMode = string(base.Mode)
	}
	switch mode := ObjectStorageMode(strings.ToLower(rawMode)); mode {
	case "":
		cfg.Mode = ObjectStorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = ObjectStorageModeGCSEmulator
			cfg.CompatibilityFallback = true
		}
	case ObjectStorageModeGCS, ObjectStorageModeGCSEmulator:
		cfg.Mode = mode
	default:
		return cfg, &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Mode: rawMode}
	}

	if err := ValidateObjectStorageConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func ValidateObjectStorageConfig(cfg ObjectStorageConfig) error {
	switch cfg.Mode {
	case ObjectStorageModeGCS, ObjectStorageModeGCSEmulator:
	default:
		return &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return &ObjectStorageConfigError{Code: ObjectStorageConfigErrorMissingBucket, Mode: string(cfg.Mode)}
	}
	if cfg.PublicBaseURL != "" {
		if err := validateAbsoluteURL(cfg.PublicBaseURL); err != nil {
			return &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidURL, Mode: string(cfg.Mode), Value: cfg.PublicBaseURL, Cause: err}
		}
	}
	if !cfg.IsEmulatorMode() {
		return nil
	}
	if cfg.EmulatorHost == "" {
		return &ObjectStorageConfigError{Code: ObjectStorageConfigErrorMissingEmulatorHost, Mode: string(cfg.Mode)}
	}
	if err := validateAbsoluteURL(cfg.EmulatorHost); err != nil {
		return &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidURL, Mode: string(cfg.Mode), Value: cfg.EmulatorHost, Cause: err}
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if strings.TrimSpace(u.Scheme) == "" || strings.TrimSpace(u.Host) == "" {
		return fmt.Errorf("missing scheme or host")
	}
	return nil
}
