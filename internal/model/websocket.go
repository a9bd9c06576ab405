package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage represents a progress update for one operation kind
type WSProgressMessage struct {
	Type      string    `json:"type"`
	Operation Operation `json:"operation"`
	Progress  int       `json:"progress"`
}

// WSErrorMessage represents an operation failure pushed to subscribers
type WSErrorMessage struct {
	Type      string    `json:"type"`
	Operation Operation `json:"operation"`
	Error     WSError   `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
