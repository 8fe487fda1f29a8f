package ml

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ProcessingError is every failure of a scoring call: transport errors,
// non-2xx responses, timeouts and undecodable bodies.
type ProcessingError struct {
	Op         string
	StatusCode int
	Timeout    bool
	Message    string
	Err        error
}

func (e *ProcessingError) Error() string {
	if e == nil {
		return "ml processing error"
	}
	var b strings.Builder
	b.WriteString("ml service ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	switch {
	case e.Timeout:
		b.WriteString("timed out")
	case e.StatusCode != 0:
		fmt.Fprintf(&b, "returned %d", e.StatusCode)
	default:
		b.WriteString("failed")
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	return b.String()
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Retryable is true for timeouts and 5xx/429 responses.
func (e *ProcessingError) Retryable() bool {
	if e == nil {
		return false
	}
	if e.Timeout || e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func parseHTTPError(op string, status int, raw []byte) *ProcessingError {
	body := strings.TrimSpace(string(raw))

	// FastAPI style {"detail": "..."} or {"error": {"message": "..."}}.
	var env struct {
		Detail any `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(raw, &env); err == nil {
		switch d := env.Detail.(type) {
		case string:
			msg = d
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				msg = string(b)
			}
		}
		if msg == "" {
			msg = env.Error.Message
		}
	}
	if msg == "" {
		msg = body
	}
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &ProcessingError{Op: op, StatusCode: status, Message: msg}
}
