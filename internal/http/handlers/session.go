package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/mockly-backend/internal/domain"
	"github.com/yungbote/mockly-backend/internal/http/response"
	"github.com/yungbote/mockly-backend/internal/services"
)

type SessionHandler struct {
	sessions services.SessionService
}

func NewSessionHandler(sessions services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// POST /api/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	var req services.CreateSessionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	session, err := h.sessions.Create(dbcFrom(c), userID, req)
	if err != nil {
		response.RespondAPIError(c, err, "create_session_failed")
		return
	}
	response.RespondCreated(c, gin.H{"session": session})
}

// GET /api/sessions?status=&page=&size=
func (h *SessionHandler) List(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	out, err := h.sessions.List(dbcFrom(c), userID, types.SessionStatus(c.Query("status")), page, size)
	if err != nil {
		response.RespondAPIError(c, err, "list_sessions_failed")
		return
	}
	response.RespondOK(c, out)
}

// GET /api/sessions/me/active
func (h *SessionHandler) Active(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	session, err := h.sessions.Active(dbcFrom(c), userID)
	if err != nil {
		response.RespondAPIError(c, err, "active_session_failed")
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	session, err := h.sessions.Get(dbcFrom(c), sessionID, userID)
	if err != nil {
		response.RespondAPIError(c, err, "get_session_failed")
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// POST /api/sessions/:id/join
func (h *SessionHandler) Join(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	session, err := h.sessions.Join(dbcFrom(c), sessionID, userID)
	if err != nil {
		response.RespondAPIError(c, err, "join_session_failed")
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// POST /api/sessions/:id/leave
func (h *SessionHandler) Leave(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	if err := h.sessions.Leave(dbcFrom(c), sessionID, userID); err != nil {
		response.RespondAPIError(c, err, "leave_session_failed")
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/sessions/:id/end
func (h *SessionHandler) End(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	session, err := h.sessions.End(dbcFrom(c), sessionID, userID)
	if err != nil {
		response.RespondAPIError(c, err, "end_session_failed")
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// POST /api/sessions/:id/cancel
func (h *SessionHandler) Cancel(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	session, err := h.sessions.Cancel(dbcFrom(c), sessionID, userID)
	if err != nil {
		response.RespondAPIError(c, err, "cancel_session_failed")
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// GET /api/sessions/:id/token?name=
func (h *SessionHandler) RoomToken(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	tok, err := h.sessions.RoomToken(dbcFrom(c), sessionID, userID, c.Query("name"))
	if err != nil {
		response.RespondAPIError(c, err, "room_token_failed")
		return
	}
	response.RespondOK(c, tok)
}
