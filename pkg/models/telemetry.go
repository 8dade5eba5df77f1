package models

// AuditEvent is a single entry of the in-memory audit trail.
// Timestamp is UTC ISO-8601.
type AuditEvent struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Actor     *string        `json:"actor"`
	Action    string         `json:"action"`
	Target    *string        `json:"target"`
	Metadata  map[string]any `json:"metadata"`
}

// LogEvent is a captured log line.
type LogEvent struct {
	Logger  string  `json:"name"`
	Level   string  `json:"level"`
	Message string  `json:"message"`
	Created float64 `json:"created"`
}
