package query

// Response is the envelope of every JSON reply except the export download.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type TrackEventBody struct {
	EventType string         `json:"eventType" binding:"required"`
	EventData map[string]any `json:"eventData"`
}

type TrackEventResult struct {
	EventID string `json:"eventId"`
	Date    string `json:"date"`
}

type HealthResult struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}
