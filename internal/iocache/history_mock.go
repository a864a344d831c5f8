package iocache

import (
	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/keithrbennett/covloupe/schema"
	"github.com/stretchr/testify/mock"
)

// MockHistoryManager is a mock implementation of HistoryManager for testing.
type MockHistoryManager struct {
	mock.Mock
}

var _ contract.HistoryManager = &MockHistoryManager{} // Compile-time check

// GetHistoryStore returns the mocked store.
func (m *MockHistoryManager) GetHistoryStore() contract.HistoryStore {
	args := m.Called()
	if store := args.Get(0); store != nil {
		return store.(contract.HistoryStore)
	}
	return nil
}

// MockHistoryStore is a mock implementation of HistoryStore for testing.
type MockHistoryStore struct {
	mock.Mock
}

var _ contract.HistoryStore = &MockHistoryStore{} // Compile-time check

// RecordRun mocks the RecordRun method.
func (m *MockHistoryStore) RecordRun(run schema.HistoryRunRecord, files []schema.HistoryFileRecord) (int64, error) {
	args := m.Called(run, files)
	return args.Get(0).(int64), args.Error(1)
}

// GetStatus mocks the GetStatus method.
func (m *MockHistoryStore) GetStatus() (schema.HistoryStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.HistoryStatus), args.Error(1)
}

// GetAllRuns mocks the GetAllRuns method.
func (m *MockHistoryStore) GetAllRuns() ([]schema.HistoryRunRecord, error) {
	args := m.Called()
	return args.Get(0).([]schema.HistoryRunRecord), args.Error(1)
}

// GetAllFileStats mocks the GetAllFileStats method.
func (m *MockHistoryStore) GetAllFileStats() ([]schema.HistoryFileRecord, error) {
	args := m.Called()
	return args.Get(0).([]schema.HistoryFileRecord), args.Error(1)
}

// Close mocks the Close method.
func (m *MockHistoryStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
