package livekit

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const roomPrefix = "session-"

var ErrUnknownRoom = errors.New("room name does not reference a session")

// RoomName is the provider room bound to a session.
func RoomName(sessionID uuid.UUID) string {
	return roomPrefix + sessionID.String()
}

// ParseRoomName reverses RoomName.
func ParseRoomName(name string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, roomPrefix) {
		return uuid.Nil, ErrUnknownRoom
	}
	id, err := uuid.Parse(strings.TrimPrefix(name, roomPrefix))
	if err != nil {
		return uuid.Nil, ErrUnknownRoom
	}
	return id, nil
}
