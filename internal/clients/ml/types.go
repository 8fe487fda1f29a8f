package ml

// ProcessRequest is the body of POST /api/process.
type ProcessRequest struct {
	SessionID    string `json:"sessionId"`
	ArtifactID   string `json:"artifactId"`
	ArtifactURL  string `json:"artifactUrl"`
	ArtifactType string `json:"artifactType"`
}

type ProcessResponse struct {
	Metrics         map[string]any `json:"metrics"`
	Summary         string         `json:"summary"`
	Recommendations string         `json:"recommendations"`
	Transcript      map[string]any `json:"transcript"`
}

// HasTranscript reports whether the scorer returned any transcript content.
func (r *ProcessResponse) HasTranscript() bool {
	return r != nil && len(r.Transcript) > 0
}

type healthResponse struct {
	Status string `json:"status"`
}
