package flare

import (
	"context"
	"net/http"
	"sync"

	"github.com/OrlandoBitencourt/flare/internal/domain"
)

// MockClient is a mock implementation of Client for testing
type MockClient struct {
	mu sync.RWMutex

	// Stored flags, in insertion order
	flags []domain.FlagEntry

	// Mock behaviors
	FetchAllFunc func(ctx context.Context, scope string) ([]domain.FlagEntry, error)
	FetchOneFunc func(ctx context.Context, flagKey string, evalCtx domain.EvaluationContext) (*domain.FlagEntry, error)

	// Call tracking
	fetchAllCalls int
	fetchOneCalls int
}

// NewMockClient creates a new mock client
func NewMockClient() *MockClient {
	return &MockClient{}
}

// AddFlag adds a flag to the mock, replacing any entry with the same key
func (m *MockClient) AddFlag(entry domain.FlagEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.flags {
		if m.flags[i].Key == entry.Key {
			m.flags[i] = entry
			return
		}
	}
	m.flags = append(m.flags, entry)
}

// FetchAll returns all stored flags
func (m *MockClient) FetchAll(ctx context.Context, scope string) ([]domain.FlagEntry, error) {
	m.mu.Lock()
	m.fetchAllCalls++
	fn := m.FetchAllFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, scope)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	flags := make([]domain.FlagEntry, len(m.flags))
	copy(flags, m.flags)
	return flags, nil
}

// FetchOne returns a stored flag, or a 404 APIError
func (m *MockClient) FetchOne(ctx context.Context, flagKey string, evalCtx domain.EvaluationContext) (*domain.FlagEntry, error) {
	m.mu.Lock()
	m.fetchOneCalls++
	fn := m.FetchOneFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, flagKey, evalCtx)
	}

	if err := evalCtx.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, entry := range m.flags {
		if entry.Key == flagKey {
			found := entry
			return &found, nil
		}
	}

	return nil, domain.NewAPIErrorFromResponse(http.StatusNotFound, "")
}

// FetchAllCalls returns how many times FetchAll was called
func (m *MockClient) FetchAllCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetchAllCalls
}

// FetchOneCalls returns how many times FetchOne was called
func (m *MockClient) FetchOneCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetchOneCalls
}

// Reset resets the mock state
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags = nil
	m.fetchAllCalls = 0
	m.fetchOneCalls = 0
}

// AssertCalled asserts methods were called expected times
func (m *MockClient) AssertCalled(t interface{ Errorf(string, ...interface{}) }, method string, expected int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var actual int
	switch method {
	case "FetchAll":
		actual = m.fetchAllCalls
	case "FetchOne":
		actual = m.fetchOneCalls
	default:
		t.Errorf("unknown method: %s", method)
		return
	}

	if actual != expected {
		t.Errorf("%s called %d times, expected %d", method, actual, expected)
	}
}
