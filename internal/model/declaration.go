package model

// DeclarationSummary reports what a declaration run achieved. Counts are
// cumulative across batches and are returned even when the run stops early.
type DeclarationSummary struct {
	RunID          string `json:"runId"`
	TestID         string `json:"testId"`
	DeclaredCount  int    `json:"declaredCount"`
	EmailsSent     int    `json:"emailsSent"`
	EmailsFailed   int    `json:"emailsFailed"`
	FailedAttempts int    `json:"failedAttempts"`
	Batches        int    `json:"batches"`
}

// DeclarationJob is queued when a declaration is requested asynchronously.
type DeclarationJob struct {
	RunID      string `json:"run_id"`
	TestID     string `json:"test_id"`
	DeclaredBy string `json:"declared_by"`
	Attempt    int    `json:"attempt"`
}

// DeclareOneResponse is returned by the individual declare action.
type DeclareOneResponse struct {
	Result    *AssessmentResult `json:"result"`
	EmailSent bool              `json:"emailSent"`
}
