package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mockly-backend/internal/http/response"
	"github.com/yungbote/mockly-backend/internal/services"
)

type ReportHandler struct {
	reports services.ReportService
}

func NewReportHandler(reports services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// POST /api/sessions/:id/report/trigger
// Answers 202 with the current snapshot; the outcome arrives as REPORT_READY or REPORT_FAILED.
func (h *ReportHandler) Trigger(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	report, err := h.reports.TriggerGeneration(dbcFrom(c), sessionID, userID)
	if err != nil {
		response.RespondAPIError(c, err, "trigger_report_failed")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"report": report})
}

// GET /api/sessions/:id/report
func (h *ReportHandler) Get(c *gin.Context) {
	userID, ok := requireCaller(c)
	if !ok {
		return
	}
	sessionID, ok := paramUUID(c, "id", "invalid_session_id")
	if !ok {
		return
	}
	report, err := h.reports.GetReport(dbcFrom(c), sessionID, userID)
	if err != nil {
		response.RespondAPIError(c, err, "get_report_failed")
		return
	}
	response.RespondOK(c, gin.H{"report": report})
}
