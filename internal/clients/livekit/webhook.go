package livekit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

const (
	EventRoomStarted  = "room_started"
	EventRoomFinished = "room_finished"
)

var ErrBadSignature = errors.New("webhook signature mismatch")

type WebhookEvent struct {
	Event string
	Room  string
}

// ParseWebhook accepts {"event": "...", "room": "name"} and {"room": {"name": "..."}}.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var raw struct {
		Event string          `json:"event"`
		Room  json.RawMessage `json:"room"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	ev := &WebhookEvent{Event: strings.TrimSpace(raw.Event)}
	if len(raw.Room) > 0 {
		var name string
		if err := json.Unmarshal(raw.Room, &name); err == nil {
			ev.Room = name
		} else {
			var obj struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(raw.Room, &obj); err != nil {
				return nil, err
			}
			ev.Room = obj.Name
		}
	}
	ev.Room = strings.TrimSpace(ev.Room)
	return ev, nil
}

// VerifySignature compares the Authorization header with base64(HMAC-SHA256(body)).
// An empty secret disables verification.
func VerifySignature(secret string, body []byte, header string) error {
	if secret == "" {
		return nil
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrBadSignature
	}
	got, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal(got, Sign(secret, body)) {
		return ErrBadSignature
	}
	return nil
}

func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
