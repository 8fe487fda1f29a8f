package livekit

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomNameRoundTrip(t *testing.T) {
	id := uuid.New()
	got, err := ParseRoomName(RoomName(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	for _, bad := range []string{"", "room-1", "session-", "session-not-a-uuid", id.String()} {
		_, err := ParseRoomName(bad)
		assert.ErrorIs(t, err, ErrUnknownRoom, bad)
	}
}

func TestTokenIssuerClaims(t *testing.T) {
	ti, err := NewTokenIssuer(Config{URL: "wss://lk.example", APIKey: "key", APISecret: "shh"})
	require.NoError(t, err)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ti.now = func() time.Time { return fixed }

	at, err := ti.Issue("session-x", "user-1", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "wss://lk.example", at.URL)
	assert.Equal(t, fixed.Add(DefaultTokenTTL), at.ExpiresAt)

	var claims accessClaims
	_, _, err = jwt.NewParser().ParseUnverified(at.Token, &claims)
	require.NoError(t, err)
	assert.Equal(t, "key", claims.Issuer)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, VideoGrant{Room: "session-x", RoomJoin: true, CanPublish: true, CanSubscribe: true}, claims.Video)
	assert.Equal(t, fixed.Unix(), claims.NotBefore.Unix())
}

func TestNewTokenIssuerRequiresCredentials(t *testing.T) {
	_, err := NewTokenIssuer(Config{APIKey: "key"})
	require.Error(t, err)
}

func TestParseWebhook(t *testing.T) {
	ev, err := ParseWebhook([]byte(`{"event":"room_started","room":"session-abc"}`))
	require.NoError(t, err)
	assert.Equal(t, &WebhookEvent{Event: EventRoomStarted, Room: "session-abc"}, ev)

	ev, err = ParseWebhook([]byte(`{"event":"room_finished","room":{"name":"session-def","sid":"RM_1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "session-def", ev.Room)

	_, err = ParseWebhook([]byte(`{"event":`))
	require.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"room_started"}`)
	good := base64.StdEncoding.EncodeToString(Sign("hook", body))

	assert.NoError(t, VerifySignature("", body, ""))
	assert.NoError(t, VerifySignature("hook", body, good))
	assert.ErrorIs(t, VerifySignature("hook", body, ""), ErrBadSignature)
	assert.ErrorIs(t, VerifySignature("hook", body, "!!"), ErrBadSignature)
	assert.ErrorIs(t, VerifySignature("hook", []byte(`{}`), good), ErrBadSignature)
}
