package model

// AnalyzeVideoResponse is returned by POST /api/v1/analyze_video.
type AnalyzeVideoResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// AnalysisResultResponse is returned by GET /api/v1/analysis_result/{task_id}.
// The result bundle is flattened into the top level when the task completed.
type AnalysisResultResponse struct {
	TaskID       string     `json:"task_id"`
	Status       TaskStatus `json:"status"`
	Progress     int        `json:"progress,omitempty"`
	CurrentStep  string     `json:"current_step,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	*AnalysisResult
}

// ShareURLRequest is the JSON body of POST /api/v1/share_url.
type ShareURLRequest struct {
	URL        string `json:"url" validate:"required,url"`
	Identifier string `json:"identifier" validate:"omitempty,max=255"`
}

// ShareURLResponse is the acknowledgment shape of the share_url endpoint.
// It deliberately differs from AnalyzeVideoResponse; pre-registered share
// clients depend on this exact contract.
type ShareURLResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TaskProgressMessage is pushed over the WebSocket progress stream.
type TaskProgressMessage struct {
	Type        string     `json:"type"`
	TaskID      string     `json:"task_id"`
	Status      TaskStatus `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"current_step,omitempty"`
	Error       string     `json:"error,omitempty"`
}
