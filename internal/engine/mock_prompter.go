package engine

import (
	"context"
	"sync"

	"github.com/Veraticus/alco/internal/model"
)

// MockPrompter is a test implementation of the Prompter interface.
type MockPrompter struct {
	Err          error
	confirmCalls []MockConfirmCall
	mu           sync.Mutex
	accept       bool
}

// MockConfirmCall records details of a single confirmation request.
type MockConfirmCall struct {
	Existing   model.ReportRecord
	Submission model.ReportRecord
}

// NewMockPrompter creates a prompter that always answers accept.
func NewMockPrompter(accept bool) *MockPrompter {
	return &MockPrompter{
		confirmCalls: make([]MockConfirmCall, 0),
		accept:       accept,
	}
}

// ConfirmUpdate implements Prompter.
func (m *MockPrompter) ConfirmUpdate(_ context.Context, existing, submission model.ReportRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.confirmCalls = append(m.confirmCalls, MockConfirmCall{
		Existing:   existing.Clone(),
		Submission: submission.Clone(),
	})
	if m.Err != nil {
		return false, m.Err
	}
	return m.accept, nil
}

// Calls returns the recorded confirmation requests.
func (m *MockPrompter) Calls() []MockConfirmCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockConfirmCall, len(m.confirmCalls))
	copy(out, m.confirmCalls)
	return out
}
