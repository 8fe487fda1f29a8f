package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mockly-backend/internal/http/response"
	"github.com/yungbote/mockly-backend/internal/services"
)

type ArtifactHandler struct {
	artifacts services.ArtifactService
}

func NewArtifactHandler(artifacts services.ArtifactService) *ArtifactHandler {
	return &ArtifactHandler{artifacts: artifacts}
}

// POST /api/sessions/:id/artifacts/request-upload
func (h *ArtifactHandler) RequestUpload(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	var req services.RequestUploadInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	slot, err := h.artifacts.RequestUpload(dbcFrom(c), sessionID, userID, req)
	if err != nil {
		response.RespondAPIError(c, err, "request_upload_failed")
		return
	}
	response.RespondCreated(c, slot)
}

// POST /api/sessions/:id/artifacts/:artifactId/complete
func (h *ArtifactHandler) CompleteUpload(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	artifactID, ok := paramUUID(c, "artifactId", "invalid_artifact_id")
	if !ok {
		return
	}
	var req services.CompleteUploadInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	artifact, err := h.artifacts.CompleteUpload(dbcFrom(c), sessionID, artifactID, userID, req)
	if err != nil {
		response.RespondAPIError(c, err, "complete_upload_failed")
		return
	}
	response.RespondOK(c, gin.H{"artifact": artifact})
}

// GET /api/sessions/:id/artifacts
func (h *ArtifactHandler) List(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	artifacts, err := h.artifacts.List(dbcFrom(c), sessionID, userID)
	if err != nil {
		response.RespondAPIError(c, err, "list_artifacts_failed")
		return
	}
	response.RespondOK(c, gin.H{"artifacts": artifacts})
}

// GET /api/sessions/:id/artifacts/:artifactId
func (h *ArtifactHandler) Get(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	artifactID, ok := paramUUID(c, "artifactId", "invalid_artifact_id")
	if !ok {
		return
	}
	artifact, err := h.artifacts.Get(dbcFrom(c), sessionID, artifactID, userID)
	if err != nil {
		response.RespondAPIError(c, err, "get_artifact_failed")
		return
	}
	response.RespondOK(c, gin.H{"artifact": artifact})
}
