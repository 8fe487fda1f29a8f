package services

import (
	"fmt"
	"net/http"

	"github.com/yungbote/mockly-backend/internal/platform/apierr"
)

const CodeUploadVerificationFailed = "upload_verification_failed"

// UploadVerificationError means the stored object is missing or does not
// match the declared size. Clients should re-upload rather than retry.
type UploadVerificationError struct {
	Reason   string
	Expected int64
	Actual   int64
}

func (e *UploadVerificationError) Error() string {
	switch e.Reason {
	case "missing":
		return "file was not uploaded to storage; upload the file first"
	case "size_mismatch":
		return fmt.Sprintf("file size mismatch: expected %d bytes, actual %d bytes; re-upload the file", e.Expected, e.Actual)
	default:
		return "upload verification failed"
	}
}

func uploadVerificationFailed(reason string, expected, actual int64) error {
	return apierr.New(http.StatusUnprocessableEntity, CodeUploadVerificationFailed, &UploadVerificationError{
		Reason:   reason,
		Expected: expected,
		Actual:   actual,
	})
}

func sessionNotFound() error {
	return apierr.NotFound("session_not_found", "session not found")
}
