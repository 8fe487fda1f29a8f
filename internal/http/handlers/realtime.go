package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/mockly-backend/internal/http/response"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
	"github.com/yungbote/mockly-backend/internal/realtime"
	"github.com/yungbote/mockly-backend/internal/services"
)

type RealtimeHandler struct {
	log      *logger.Logger
	hub      *realtime.SSEHub
	sessions services.SessionService
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub, sessions services.SessionService) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub, sessions: sessions}
}

// GET /api/sessions/:id/events
// Membership is checked once at connect; the stream then carries every event
// published on the session channel until the client goes away.
func (h *RealtimeHandler) SessionEvents(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	if _, err := h.sessions.Get(dbcFrom(c), sessionID, userID); err != nil {
		response.RespondAPIError(c, err, "subscribe_failed")
		return
	}

	client := h.hub.NewSSEClient(userID)
	h.hub.AddChannel(client, realtime.SessionChannel(sessionID))
	h.log.Info("SSE stream open", "user_id", userID, "session", sessionID, "client_id", client.ID)

	h.hub.Serve(c.Writer, c.Request, client)

	h.hub.CloseClient(client)
	h.log.Debug("SSE stream closed", "client_id", client.ID)
}
