// Package events contains the WebSocket message contracts of the dashboard.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeRunSnapshot carries the full state of a run after every change
	MessageTypeRunSnapshot MessageType = "run:snapshot"
	// MessageTypeEpoch carries the metrics of one finished epoch
	MessageTypeEpoch MessageType = "run:epoch"

	MessageTypeConnect MessageType = "connect"
	MessageTypeError   MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// RunSnapshot is the primary message type for run progress
type RunSnapshot struct {
	RunID       string         `json:"run_id"`
	Status      string         `json:"status"`   // idle|training|complete|failed
	Progress    int            `json:"progress"` // 0-100
	CurrentStep string         `json:"current_step"`
	Steps       []StepSnapshot `json:"steps"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot represents the state of a single step
type StepSnapshot struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Status   string                 `json:"status"` // pending|running|completed|failed|skipped
	Progress int                    `json:"progress"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// EpochEvent is broadcast once per finished epoch
type EpochEvent struct {
	RunID   string  `json:"run_id"`
	Epoch   int     `json:"epoch"`
	Epochs  int     `json:"epochs"`
	Loss    float64 `json:"loss"`
	MAE     float64 `json:"mae"`
	ValLoss float64 `json:"val_loss"`
	ValMAE  float64 `json:"val_mae"`
}
