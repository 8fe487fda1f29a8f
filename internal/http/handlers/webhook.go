package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mockly-backend/internal/clients/livekit"
	"github.com/yungbote/mockly-backend/internal/http/response"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
	"github.com/yungbote/mockly-backend/internal/services"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	log      *logger.Logger
	sessions services.SessionService
	secret   string
}

func NewWebhookHandler(log *logger.Logger, sessions services.SessionService, secret string) *WebhookHandler {
	return &WebhookHandler{log: log.With("handler", "WebhookHandler"), sessions: sessions, secret: secret}
}

// POST /api/webhooks/livekit
func (h *WebhookHandler) LiveKit(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := livekit.VerifySignature(h.secret, body, c.GetHeader("Authorization")); err != nil {
		h.log.Warn("Rejected webhook with bad signature")
		response.RespondError(c, http.StatusUnauthorized, "invalid_signature", err)
		return
	}
	ev, err := livekit.ParseWebhook(body)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_webhook", err)
		return
	}
	if ev.Room == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_webhook", errors.New("room name required"))
		return
	}

	ctx := c.Request.Context()
	switch ev.Event {
	case livekit.EventRoomStarted:
		err = h.sessions.RoomStarted(ctx, ev.Room)
	case livekit.EventRoomFinished:
		err = h.sessions.RoomFinished(ctx, ev.Room)
	default:
		h.log.Debug("Ignoring webhook event", "event", ev.Event, "room", ev.Room)
	}
	if err != nil {
		response.RespondAPIError(c, err, "webhook_failed")
		return
	}
	response.RespondOK(c, gin.H{"received": true})
}
