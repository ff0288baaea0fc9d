package models

// Response bodies of the tick HTTP endpoints.

type IngestResponse struct {
	OK    bool `json:"ok"`
	Saved Tick `json:"saved"`
}

type RejectResponse struct {
	OK             bool   `json:"ok"`
	Error          string `json:"error"`
	GotType        string `json:"got_type"`
	GotBodyPreview any    `json:"got_body_preview"`
}

type HealthResponse struct {
	OK       bool  `json:"ok"`
	LastTick *Tick `json:"lastTick"`
}

type StatusResponse struct {
	OK bool `json:"ok"`
}
