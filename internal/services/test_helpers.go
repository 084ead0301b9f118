package services

import (
	"github.com/stretchr/testify/mock"
)

// MockEventPublisher is a mock for the EventPublisher interface
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Broadcast(eventType string, data interface{}) {
	m.Called(eventType, data)
}
