// Package mlstub is a stand-in scoring service for local runs and tests. It
// speaks the same contract as the real one and returns a fixed scorecard.
package mlstub

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mockly-backend/internal/clients/ml"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
)

func NewRouter(log *logger.Logger) *gin.Engine {
	log = log.With("component", "MLStub")
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})

	r.POST("/api/process", func(c *gin.Context) {
		var req ml.ProcessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
			return
		}
		if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.ArtifactURL) == "" {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "sessionId and artifactUrl are required"})
			return
		}
		log.Info("Scoring artifact", "session", req.SessionID, "artifact", req.ArtifactID, "artifact_type", req.ArtifactType)
		c.JSON(http.StatusOK, Scorecard())
	})
	return r
}

// Scorecard is the deterministic response every request receives.
func Scorecard() *ml.ProcessResponse {
	metrics := map[string]any{
		"score":              85.5,
		"communication":      8.2,
		"technical":          7.9,
		"confidence":         7.8,
		"clarity":            8.2,
		"pace":               6.5,
		"engagement":         7.5,
		"professionalism":    8.3,
		"technical_accuracy": 7.9,
	}
	summary := fmt.Sprintf(
		"The candidate communicated clearly (%.1f/10) and stayed engaged (%.1f/10). "+
			"Technical accuracy was solid at %.1f/10. Overall performance score: %.1f/100.",
		metrics["clarity"], metrics["engagement"], metrics["technical_accuracy"], metrics["score"],
	)
	recommendations := strings.Join([]string{
		"1. Keep practicing technical explanations to improve clarity",
		"2. Hold a consistent pace through the whole interview",
		"3. Back technical claims with specific examples",
		"4. Answer the interviewer's question directly before elaborating",
	}, "\n")
	return &ml.ProcessResponse{
		Metrics:         metrics,
		Summary:         summary,
		Recommendations: recommendations,
		Transcript: map[string]any{
			"full_text":        "Mock transcript of the interview.",
			"word_count":       150,
			"duration_seconds": 300,
			"speaker_segments": []map[string]any{
				{"speaker": "CANDIDATE", "text": "Hello, thank you for this opportunity...", "start_time": 0.0, "end_time": 45.2},
				{"speaker": "INTERVIEWER", "text": "Can you tell me about your experience with...", "start_time": 45.2, "end_time": 78.5},
			},
		},
	}
}
