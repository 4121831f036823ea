// Package testutil provides mocks and fixtures for operations tests.
package testutil

import (
	"context"
	"sync"

	"salesdash/internal/operations"
)

// MockStage is a configurable mock implementation of the step interface
type MockStage struct {
	IDValue           string
	NameValue         string
	DependenciesValue []string

	ExecuteFunc  func(ctx context.Context, state *operations.OperationState) error
	ValidateFunc func(state *operations.OperationState) error

	mu            sync.Mutex
	executeCalls  int
	validateCalls int
}

// ID returns the step ID
func (m *MockStage) ID() string { return m.IDValue }

// Name returns the step name
func (m *MockStage) Name() string { return m.NameValue }

// GetDependencies returns the step dependencies
func (m *MockStage) GetDependencies() []string {
	if m.DependenciesValue == nil {
		return []string{}
	}
	return m.DependenciesValue
}

// Execute runs ExecuteFunc, if any
func (m *MockStage) Execute(ctx context.Context, state *operations.OperationState) error {
	m.mu.Lock()
	m.executeCalls++
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, state)
	}
	return nil
}

// Validate runs ValidateFunc, if any
func (m *MockStage) Validate(state *operations.OperationState) error {
	m.mu.Lock()
	m.validateCalls++
	m.mu.Unlock()

	if m.ValidateFunc != nil {
		return m.ValidateFunc(state)
	}
	return nil
}

// GetExecuteCalls returns the number of times Execute was called
func (m *MockStage) GetExecuteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executeCalls
}

// GetValidateCalls returns the number of times Validate was called
func (m *MockStage) GetValidateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validateCalls
}

// MockWebSocketHub records every broadcast
type MockWebSocketHub struct {
	mu       sync.Mutex
	messages []WebSocketMessage
}

// WebSocketMessage is one recorded broadcast
type WebSocketMessage struct {
	EventType string
	RunID     string
	Status    string
	Data      interface{}
}

// BroadcastUpdate records the message
func (m *MockWebSocketHub) BroadcastUpdate(eventType, runID, status string, data interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, WebSocketMessage{
		EventType: eventType,
		RunID:     runID,
		Status:    status,
		Data:      data,
	})
}

// GetMessages returns a copy of all recorded messages
func (m *MockWebSocketHub) GetMessages() []WebSocketMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WebSocketMessage(nil), m.messages...)
}

// GetMessagesByType returns messages with the given event type
func (m *MockWebSocketHub) GetMessagesByType(eventType string) []WebSocketMessage {
	var out []WebSocketMessage
	for _, msg := range m.GetMessages() {
		if msg.EventType == eventType {
			out = append(out, msg)
		}
	}
	return out
}

// Statuses returns the status of every message for runID, in order
func (m *MockWebSocketHub) Statuses(runID string) []string {
	var out []string
	for _, msg := range m.GetMessages() {
		if msg.RunID == runID {
			out = append(out, msg.Status)
		}
	}
	return out
}
